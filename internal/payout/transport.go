package payout

import (
	"context"
	"log/slog"

	"satstash/internal/ecash"
)

// Payload is the JSON body handed to the operator over a transport.
type Payload struct {
	ID     string        `json:"id,omitempty"`
	Mint   string        `json:"mint"`
	Unit   string        `json:"unit"`
	Proofs []ecash.Proof `json:"proofs"`
}

// Amount is the summed face value carried by the payload.
func (p Payload) Amount() uint64 {
	return ecash.SumProofs(p.Proofs)
}

// Transport delivers one payout payload to the operator.
type Transport interface {
	// Kind identifies the transport in logs.
	Kind() string
	// Send delivers the payload. Any error means this transport failed and
	// the next one in order should be tried.
	Send(ctx context.Context, payload Payload) error
}

// BuildTransports maps the payout request's transport list onto concrete
// transports, preserving order. Unrecognized kinds are skipped.
func BuildTransports(specs []ecash.Transport, nostrSecretKey string, logger *slog.Logger) []Transport {
	if logger == nil {
		logger = slog.Default()
	}

	transports := make([]Transport, 0, len(specs))
	for _, spec := range specs {
		switch spec.Kind {
		case ecash.TransportNostr:
			dm, err := NewDirectMessage(spec.Target, nostrSecretKey)
			if err != nil {
				logger.Warn("skipping nostr transport", "target", spec.Target, "error", err)
				continue
			}
			transports = append(transports, dm)
		case ecash.TransportPost:
			transports = append(transports, NewWebhook(spec.Target))
		default:
			logger.Warn("skipping unknown transport kind", "kind", spec.Kind)
		}
	}
	return transports
}
