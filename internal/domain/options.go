package domain

import (
	"strings"

	"github.com/dunamismax/vectorflow/internal/vectorize"
)

// ConversionOptions is the wire form of vectorize.Options. Unset fields fall
// back to the base options passed to ToOptions.
type ConversionOptions struct {
	Threshold   *int   `json:"threshold,omitempty"`
	StrokeColor string `json:"stroke_color,omitempty"`
	ColorAware  *bool  `json:"color_aware,omitempty"`
	ColorMode   string `json:"color_mode,omitempty"`
	MonoColor   string `json:"mono_color,omitempty"`
}

func (o ConversionOptions) Validate() error {
	_, err := o.ToOptions(vectorize.DefaultOptions())
	return err
}

func (o ConversionOptions) ToOptions(base vectorize.Options) (vectorize.Options, error) {
	opts := base
	if o.Threshold != nil {
		opts.Threshold = *o.Threshold
	}
	if o.ColorAware != nil {
		opts.ColorAware = *o.ColorAware
	}
	if s := strings.TrimSpace(o.StrokeColor); s != "" {
		c, err := vectorize.ParseHexColor(s)
		if err != nil {
			return vectorize.Options{}, err
		}
		opts.StrokeColor = &c
	}
	if s := strings.TrimSpace(o.ColorMode); s != "" {
		mode, err := vectorize.ParseColorMode(s)
		if err != nil {
			return vectorize.Options{}, err
		}
		opts.ColorMode = mode
	}
	if s := strings.TrimSpace(o.MonoColor); s != "" {
		c, err := vectorize.ParseHexColor(s)
		if err != nil {
			return vectorize.Options{}, err
		}
		opts.MonoColor = c
	}

	if err := opts.Validate(); err != nil {
		return vectorize.Options{}, err
	}
	return opts, nil
}
