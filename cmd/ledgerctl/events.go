package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// eventEnvelope is the part of an event document needed before decoding
// it into its concrete type.
type eventEnvelope struct {
	ID       uuid.UUID `json:"id"`
	Type     string    `json:"type"`
	TenantID uuid.UUID `json:"tenant_id"`
}

func (c *cli) eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Feed upstream business events to the journal generators",
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Write upstream events from a JSON file into the outbox",
		Long: `Reads one event object, or an array of them, from file ("-" for stdin) and
stores them in the outbox in a single transaction. The outbox processor then
delivers them to the journal generators as if the upstream context had
published them. When --tenant is set every event must belong to it.`,
		Args: cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, s *session, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			var tenantID uuid.UUID
			if c.opts.tenant != "" {
				if tenantID, err = c.tenantID(); err != nil {
					return err
				}
			}

			accepted := make(map[string]bool)
			for _, h := range s.ledger.Generators() {
				for _, t := range h.EventTypes() {
					accepted[t] = true
				}
			}
			events, err := decodeEvents(data, s.ledger.Serializer, accepted, tenantID)
			if err != nil {
				return err
			}

			err = s.db.Transaction(func(tx *gorm.DB) error {
				return s.ledger.Publisher.PublishWithTx(ctx, tx, events...)
			})
			if err != nil {
				return fmt.Errorf("failed to write events to the outbox: %w", err)
			}

			ids := make([]string, 0, len(events))
			for _, e := range events {
				ids = append(ids, e.EventID().String())
			}
			return c.render(map[string]any{"count": len(events), "event_ids": ids}, func(w io.Writer) {
				for _, e := range events {
					fmt.Fprintf(w, "%s\t%s\t%s\n", e.EventID(), e.EventType(), e.TenantID())
				}
				fmt.Fprintf(w, "%d events queued\n", len(events))
			})
		}),
	}

	cmd.AddCommand(ingestCmd)
	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// decodeEvents parses one event or an array of events. Every event must be
// of an accepted type and carry an event id and a tenant; a non-nil tenantID
// must match.
func decodeEvents(data []byte, serializer *event.EventSerializer, accepted map[string]bool, tenantID uuid.UUID) ([]shared.DomainEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("no events in input")
	}

	var docs []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("invalid event array: %w", err)
		}
		if len(docs) == 0 {
			return nil, errors.New("no events in input")
		}
	} else {
		docs = []json.RawMessage{data}
	}

	events := make([]shared.DomainEvent, 0, len(docs))
	seen := make(map[uuid.UUID]bool, len(docs))
	for i, doc := range docs {
		var env eventEnvelope
		if err := json.Unmarshal(doc, &env); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		switch {
		case !accepted[env.Type]:
			return nil, fmt.Errorf("event %d: type %q is not consumed by any journal generator", i, env.Type)
		case env.ID == uuid.Nil:
			return nil, fmt.Errorf("event %d: id is required", i)
		case env.TenantID == uuid.Nil:
			return nil, fmt.Errorf("event %d: tenant_id is required", i)
		case tenantID != uuid.Nil && env.TenantID != tenantID:
			return nil, fmt.Errorf("event %d: tenant %s does not match --tenant %s", i, env.TenantID, tenantID)
		case seen[env.ID]:
			return nil, fmt.Errorf("event %d: duplicate id %s", i, env.ID)
		}
		seen[env.ID] = true

		ev, err := serializer.Deserialize(env.Type, doc)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
