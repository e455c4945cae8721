package dataset

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/TesterSim2/Gazelle/internal/logger"
	"github.com/TesterSim2/Gazelle/internal/metrics"
)

// FlightSource pulls text datasets from an Arrow Flight server over
// gRPC. Connections are plaintext; these servers live on the same host
// or a trusted network.
type FlightSource struct {
	client flight.Client
	addr   string
}

// NewFlightSource dials addr and returns a source. Close releases the
// connection.
func NewFlightSource(addr string) (*FlightSource, error) {
	client, err := flight.NewClientWithMiddleware(addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing flight server %s: %w", addr, err)
	}
	return &FlightSource{client: client, addr: addr}, nil
}

func (s *FlightSource) Close() error {
	return s.client.Close()
}

// Fetch retrieves every text row for the named dataset via DoGet.
func (s *FlightSource) Fetch(ctx context.Context, name string) ([]string, error) {
	stream, err := s.client.DoGet(ctx, &flight.Ticket{Ticket: []byte(name)})
	if err != nil {
		return nil, fmt.Errorf("DoGet %q: %w", name, err)
	}

	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		return nil, fmt.Errorf("opening record stream: %w", err)
	}
	defer rdr.Release()

	var texts []string
	for rdr.Next() {
		rows, err := textRows(rdr.Record())
		if err != nil {
			return nil, err
		}
		texts = append(texts, rows...)
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("reading record stream: %w", err)
	}

	metrics.RecordDatasetRecords("flight", len(texts))
	logger.Log.Info("dataset fetched",
		"server", s.addr, "name", name, "rows", len(texts))
	return texts, nil
}
