package sync

import (
	"context"
	"fmt"
)

// Coordinator drives one synchronization run end to end: acquire ledger
// access, resolve the destination group, pick full or delta mode from the
// board's watermark, fetch, upsert, and release the ledger session no matter
// which step failed.
type Coordinator struct {
	*SyncContext
	Ledger  LedgerConnector
	Fetcher LedgerFetcher
	Board   BoardAPI
	Engine  UpsertEngine
}

// NewCoordinator wires a coordinator with the concrete Service Layer and
// board clients.
func NewCoordinator(sc *SyncContext) *Coordinator {
	board := BoardFetcherAndUpdater{SyncContext: sc}
	return &Coordinator{
		SyncContext: sc,
		Ledger:      ServiceLayerConnector{SyncContext: sc},
		Fetcher:     LedgerFetcher{SyncContext: sc},
		Board:       board,
		Engine: UpsertEngine{
			SyncContext: sc,
			Board:       board,
			Mapper:      BoardMapper{SyncContext: sc},
		},
	}
}

// Execute performs one run and returns its report. A non-nil error always
// pairs with StateAborted; the ledger session is released either way.
func (c *Coordinator) Execute(ctx context.Context) (Report, error) {
	report := Report{Mode: ModeFull, State: StateIdle}
	abort := func(err error) (Report, error) {
		c.Logger.Error().Err(err).Str("state", string(report.State)).Msg("sync aborted")
		report.State = StateAborted
		return report, err
	}

	report.State = StateAcquiringSource
	session, err := c.Ledger.Connect(ctx)
	if err != nil {
		return abort(err)
	}
	defer func() {
		if closeErr := session.Close(ctx); closeErr != nil {
			c.Logger.Warn().Err(closeErr).Msg("ledger logout failed")
		}
	}()

	// writes have no destination without the group, so this failure is fatal
	groupID, err := c.Board.GroupID(c.Config.Board.GroupName, ctx)
	if err != nil {
		return abort(err)
	}

	report.State = StateResolvingWatermark
	var deltaFilter string
	if watermark, ok := c.Board.LatestSyncInstant(ctx); ok {
		report.Mode = ModeDelta
		deltaFilter = BuildDeltaFilter(watermark)
		c.Logger.Info().Time("watermark", watermark).Msg("delta sync: fetching changes since last run")
	} else {
		c.Logger.Info().Msg("full sync: no usable watermark on the board")
	}

	report.State = StateFetching
	filter := supplierFilter(c.Config.Ledger.PartnerType, deltaFilter)
	suppliers, err := c.Fetcher.FetchSuppliers(session, filter, ctx)
	if err != nil {
		return abort(err)
	}
	if len(suppliers) == 0 {
		report.State = StateCompleted
		c.Logger.Info().Msg("no new or updated suppliers, nothing to do")
		return report, nil
	}

	report.State = StateUpserting
	engineReport := c.Engine.Run(suppliers, report.Mode, groupID, ctx)
	report = engineReport
	if report.State == StateAborted {
		err := fmt.Errorf("upsert aborted: %d of %d records accounted for",
			report.Created+report.Updated+report.Skipped+report.Failed, report.Fetched)
		c.Logger.Error().Err(err).Msg("sync aborted")
		return report, err
	}

	c.Logger.Info().
		Str("mode", string(report.Mode)).
		Int("fetched", report.Fetched).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("sync completed")
	return report, nil
}
