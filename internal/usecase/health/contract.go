package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ConverterChecker checks document-converter availability.
type ConverterChecker interface {
	Ping(ctx context.Context) error
}
