package sync

import (
	"context"

	"github.com/rs/zerolog"
)

// Mode selects how a run writes to the board.
type Mode string

const (
	// ModeFull batches creates and assumes the board holds no prior records.
	ModeFull Mode = "full"
	// ModeDelta resolves each record against the board and updates or
	// creates singly.
	ModeDelta Mode = "delta"
)

// State tracks one run through its lifecycle. Aborted is terminal and
// reachable from any non-terminal state.
type State string

const (
	StateIdle               State = "idle"
	StateAcquiringSource    State = "acquiring-source"
	StateResolvingWatermark State = "resolving-watermark"
	StateFetching           State = "fetching"
	StateUpserting          State = "upserting"
	StateCompleted          State = "completed"
	StateAborted            State = "aborted"
)

// Outcome is the per-record result of an upsert.
type Outcome string

const (
	OutcomeCreated      Outcome = "created"
	OutcomeUpdated      Outcome = "updated"
	OutcomeSkippedNoKey Outcome = "skipped-no-key"
	OutcomeFailed       Outcome = "failed"
)

// RecordEvent is one observable per-record outcome.
type RecordEvent struct {
	Code    string
	Key     string
	ItemID  string
	Outcome Outcome
}

// Report aggregates one run: mode, final state, counters and the ordered
// record events. It is not persisted; the board's own watermark column is the
// only durable state.
type Report struct {
	Mode    Mode
	State   State
	Fetched int
	Created int
	Updated int
	Skipped int
	Failed  int
	Events  []RecordEvent
}

func (r *Report) record(logger zerolog.Logger, event RecordEvent) {
	switch event.Outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeSkippedNoKey:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.Events = append(r.Events, event)
	logger.Info().
		Str("code", event.Code).
		Str("key", event.Key).
		Str("item_id", event.ItemID).
		Str("outcome", string(event.Outcome)).
		Msg("record outcome")
}

// UpsertEngine decides per record whether to create or update board items.
type UpsertEngine struct {
	*SyncContext
	Board  BoardAPI
	Mapper BoardMapper
}

// Run processes the fetched suppliers in order. Records without a matching
// key are skipped. Delta mode resolves identity and writes one record at a
// time; full mode skips identity resolution entirely and batch-creates in
// fixed-size chunks, aborting the run on the first failed chunk.
func (e UpsertEngine) Run(suppliers []Supplier, mode Mode, groupID string, ctx context.Context) Report {
	report := Report{Mode: mode, State: StateUpserting, Fetched: len(suppliers)}
	if mode == ModeFull {
		e.runFull(suppliers, groupID, &report, ctx)
	} else {
		e.runDelta(suppliers, groupID, &report, ctx)
	}
	return report
}

func (e UpsertEngine) runDelta(suppliers []Supplier, groupID string, report *Report, ctx context.Context) {
	for _, supplier := range suppliers {
		if !supplier.HasMatchingKey() {
			e.Logger.Warn().Str("code", supplier.Code()).Msg("supplier has no matching key, skipped")
			report.record(e.Logger, RecordEvent{Code: supplier.Code(), Outcome: OutcomeSkippedNoKey})
			continue
		}

		key := supplier.MatchingKey()
		values := e.Mapper.MapSupplier(supplier)

		existing, err := e.Board.FindItemByKey(key, ctx)
		if err != nil {
			// never create on a failed lookup: that risks a duplicate
			e.Logger.Error().Err(err).Str("code", supplier.Code()).Str("key", key).
				Msg("identity lookup failed, record not processed")
			report.record(e.Logger, RecordEvent{Code: supplier.Code(), Key: key, Outcome: OutcomeFailed})
			continue
		}

		if existing != nil {
			if _, err := e.Board.UpdateItem(existing.ID, values, ctx); err != nil {
				e.Logger.Error().Err(err).Str("code", supplier.Code()).Str("key", key).
					Msg("update failed")
				report.record(e.Logger, RecordEvent{Code: supplier.Code(), Key: key, ItemID: existing.ID, Outcome: OutcomeFailed})
				continue
			}
			report.record(e.Logger, RecordEvent{Code: supplier.Code(), Key: key, ItemID: existing.ID, Outcome: OutcomeUpdated})
			continue
		}

		itemID, err := e.Board.CreateItem(supplier.DisplayName(), values, groupID, ctx)
		if err != nil {
			e.Logger.Error().Err(err).Str("code", supplier.Code()).Str("key", key).
				Msg("create failed")
			report.record(e.Logger, RecordEvent{Code: supplier.Code(), Key: key, Outcome: OutcomeFailed})
			continue
		}
		report.record(e.Logger, RecordEvent{Code: supplier.Code(), Key: key, ItemID: itemID, Outcome: OutcomeCreated})
	}
	report.State = StateCompleted
}

func (e UpsertEngine) runFull(suppliers []Supplier, groupID string, report *Report, ctx context.Context) {
	var eligible []Supplier
	for _, supplier := range suppliers {
		if !supplier.HasMatchingKey() {
			e.Logger.Warn().Str("code", supplier.Code()).Msg("supplier has no matching key, skipped")
			report.record(e.Logger, RecordEvent{Code: supplier.Code(), Outcome: OutcomeSkippedNoKey})
			continue
		}
		eligible = append(eligible, supplier)
	}

	chunkSize := e.Config.Board.ChunkSize
	batches := (len(eligible) + chunkSize - 1) / chunkSize
	for i := 0; i < len(eligible); i += chunkSize {
		batch := eligible[i:min(i+chunkSize, len(eligible))]
		items := make([]BoardItemCreate, len(batch))
		for j, supplier := range batch {
			items[j] = BoardItemCreate{
				Name:         supplier.DisplayName(),
				ColumnValues: e.Mapper.MapSupplier(supplier),
			}
		}

		batchNumber := i/chunkSize + 1
		e.Logger.Info().Int("batch", batchNumber).Int("batches", batches).
			Int("items", len(items)).Msg("submitting batch create")

		ids, err := e.Board.CreateItems(items, groupID, ctx)
		if err != nil {
			// the run is not resumable mid-batch: stop here, records in this
			// and later batches stay unaccounted and the run must be retried
			e.Logger.Error().Err(err).Int("batch", batchNumber).
				Msg("batch create failed, aborting remaining batches")
			report.State = StateAborted
			return
		}

		for j, supplier := range batch {
			itemID := ""
			if j < len(ids) {
				itemID = ids[j]
			}
			report.record(e.Logger, RecordEvent{
				Code:    supplier.Code(),
				Key:     supplier.MatchingKey(),
				ItemID:  itemID,
				Outcome: OutcomeCreated,
			})
		}
	}
	report.State = StateCompleted
}
