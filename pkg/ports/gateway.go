package ports

import (
	"context"

	"github.com/aretw0/concierge/pkg/domain"
)

// MessagingGateway transmits messages to remote parties.
// The concierge never retries a failed send; timeouts are reported as errors.
type MessagingGateway interface {
	Send(ctx context.Context, req domain.SendRequest) (domain.Receipt, error)
}

// ReadinessChecker is implemented by gateways that can report whether they
// are configured to send.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}
