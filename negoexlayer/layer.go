// Package negoexlayer exposes the NEGOEX stream decoder as a gopacket layer.
package negoexlayer

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/kardianos/negoex/negoex"
)

// LayerTypeNEGOEX is the gopacket layer type of a NEGOEX message stream.
var LayerTypeNEGOEX = gopacket.RegisterLayerType(
	2731,
	gopacket.LayerTypeMetadata{
		Name:    "NEGOEX",
		Decoder: gopacket.DecodeFunc(decodeNEGOEX),
	},
)

// NEGOEX is a decoded NEGOEX stream. Contents holds the decoded messages;
// Payload holds whatever followed an unknown message type.
type NEGOEX struct {
	layers.BaseLayer
	Result *negoex.Result

	decoder *negoex.Decoder
}

// New returns a layer that decodes with cfg. The zero NEGOEX decodes with
// negoex.DefaultConfig.
func New(cfg negoex.Config) *NEGOEX {
	return &NEGOEX{decoder: negoex.NewDecoder(cfg)}
}

func (n *NEGOEX) LayerType() gopacket.LayerType { return LayerTypeNEGOEX }

func (n *NEGOEX) CanDecode() gopacket.LayerClass { return LayerTypeNEGOEX }

func (n *NEGOEX) NextLayerType() gopacket.LayerType {
	if len(n.Payload) > 0 {
		return gopacket.LayerTypePayload
	}
	return gopacket.LayerTypeZero
}

// Messages returns the decoded messages.
func (n *NEGOEX) Messages() []*negoex.Message {
	if n.Result == nil {
		return nil
	}
	return n.Result.Messages
}

// DecodeFromBytes decodes data as a NEGOEX stream. A truncated stream is
// flagged through df and keeps the messages decoded so far. A malformed
// stream is an error.
func (n *NEGOEX) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if n.decoder != nil {
		n.Result = n.decoder.DecodeBytes(data)
	} else {
		n.Result = negoex.DecodeBytes(data)
	}
	end := n.Result.Offset
	n.BaseLayer = layers.BaseLayer{Contents: data[:end], Payload: nil}

	switch n.Result.State {
	case negoex.Complete:
		return nil
	case negoex.Truncated:
		df.SetTruncated()
		return nil
	case negoex.UnknownType:
		n.Payload = data[end:]
		return nil
	}
	return n.Result.Err
}

func decodeNEGOEX(data []byte, p gopacket.PacketBuilder) error {
	n := &NEGOEX{}
	err := n.DecodeFromBytes(data, p)
	p.AddLayer(n)
	if err != nil {
		return err
	}
	if len(n.Payload) > 0 {
		return p.NextDecoder(gopacket.LayerTypePayload)
	}
	return nil
}
