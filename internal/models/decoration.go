package models

import "fmt"

type DecorationLayer string

const (
	LayerBackground  DecorationLayer = "background"
	LayerHolographic DecorationLayer = "holographic"
	LayerPhoto       DecorationLayer = "photo"
	LayerPlayer      DecorationLayer = "player"
	LayerBed         DecorationLayer = "bed"
	LayerStove       DecorationLayer = "stove"
)

const VariantDefault = "default"

// decorationVariants lists the variants each layer accepts.
var decorationVariants = map[DecorationLayer][]string{
	LayerBackground:  {VariantDefault},
	LayerHolographic: {VariantDefault},
	LayerPhoto:       {VariantDefault},
	LayerPlayer:      {VariantDefault},
	LayerBed:         {VariantDefault, "doll"},
	LayerStove:       {VariantDefault},
}

type DecorationConfig struct {
	Background  string `json:"background"`
	Holographic string `json:"holographic"`
	Photo       string `json:"photo"`
	Player      string `json:"player"`
	Bed         string `json:"bed"`
	Stove       string `json:"stove"`
}

func DefaultDecorationConfig() DecorationConfig {
	return DecorationConfig{
		Background:  VariantDefault,
		Holographic: VariantDefault,
		Photo:       VariantDefault,
		Player:      VariantDefault,
		Bed:         VariantDefault,
		Stove:       VariantDefault,
	}
}

func (c *DecorationConfig) layers() map[DecorationLayer]*string {
	return map[DecorationLayer]*string{
		LayerBackground:  &c.Background,
		LayerHolographic: &c.Holographic,
		LayerPhoto:       &c.Photo,
		LayerPlayer:      &c.Player,
		LayerBed:         &c.Bed,
		LayerStove:       &c.Stove,
	}
}

// Set changes one layer, rejecting unknown layers and variants.
func (c *DecorationConfig) Set(layer DecorationLayer, variant string) error {
	field, ok := c.layers()[layer]
	if !ok {
		return fmt.Errorf("unknown decoration layer: %s", layer)
	}
	if !validVariant(layer, variant) {
		return fmt.Errorf("invalid variant %q for layer %s", variant, layer)
	}
	*field = variant
	return nil
}

func (c *DecorationConfig) Validate() error {
	for layer, field := range c.layers() {
		if !validVariant(layer, *field) {
			return fmt.Errorf("invalid variant %q for layer %s", *field, layer)
		}
	}
	return nil
}

func validVariant(layer DecorationLayer, variant string) bool {
	for _, v := range decorationVariants[layer] {
		if v == variant {
			return true
		}
	}
	return false
}
