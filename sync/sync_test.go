// go test github.com/Acturus/baltrek-comunal-sap/sync -v
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

func testConfig() Config {
	var c Config
	c.API.Keys.Board = "test-token"
	c.API.Endpoints.Board = "https://board.test/v2"
	c.API.Endpoints.Ledger = "https://ledger.test:50000/b1s/v1"
	c.Board.ID = "1122334455"
	c.Board.GroupName = "Proveedores"
	c.Board.ChunkSize = DefaultChunkSize
	c.Ledger.CompanyDB = "TESTDB"
	c.Ledger.Username = "manager"
	c.Ledger.Password = "secret"
	c.Ledger.PartnerType = DefaultPartnerType
	c.ColumnMappings = ColumnMappings{
		Key:       KeyColumn{Column: "numeric_key", Path: "FederalTaxID"},
		Watermark: "date_updated",
		Texts: map[string]string{
			"text_name":    "CardName",
			"text_country": "Country|@countryName",
			"text_phone":   "Phone1|@phone:51",
		},
		Dates: map[string]string{
			"date_created": "CreateDate",
		},
		DateTimes: map[string]DateTimeColumn{
			"date_updated": {Date: "UpdateDate", Time: "UpdateTime"},
		},
	}
	return c
}

func newTestContext() *SyncContext {
	return &SyncContext{Config: testConfig(), Logger: zerolog.Nop()}
}

func testSupplier(json string) Supplier {
	return Supplier{Source: ParseSource(json)}
}

func numberedSupplier(i int) Supplier {
	return testSupplier(fmt.Sprintf(
		`{"CardCode":"P%04d","CardName":"Proveedor %d","FederalTaxID":"%d"}`,
		i, i, 20000000000+int64(i)))
}

func jsonResponse(body string) string {
	return "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n" + body
}

// fakeLedgerSession replays one canned body per query, in order. An empty
// responses slice with err set makes every query fail.
type fakeLedgerSession struct {
	responses []string
	err       error
	queries   []string
	closed    bool
}

func (s *fakeLedgerSession) Query(path string, ctx context.Context) (string, error) {
	s.queries = append(s.queries, path)
	if len(s.responses) == 0 {
		return "", s.err
	}
	body := s.responses[0]
	s.responses = s.responses[1:]
	return body, nil
}

func (s *fakeLedgerSession) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

type fakeConnector struct {
	session *fakeLedgerSession
	err     error
}

func (c fakeConnector) Connect(ctx context.Context) (LedgerSession, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.session, nil
}

// fakeBoardAPI records every board call for assertions.
type fakeBoardAPI struct {
	groupErr     error
	watermark    time.Time
	hasWatermark bool

	existing  map[string]*BoardItem // matching key -> item
	findErr   map[string]error
	createErr error
	updateErr error
	failBatch int // 1-based batch to fail, 0 never fails

	finds   []string
	creates []string
	updates []string
	batches [][]BoardItemCreate
	nextID  int
}

func (b *fakeBoardAPI) GroupID(name string, ctx context.Context) (string, error) {
	if b.groupErr != nil {
		return "", b.groupErr
	}
	return "grp1", nil
}

func (b *fakeBoardAPI) LatestSyncInstant(ctx context.Context) (time.Time, bool) {
	return b.watermark, b.hasWatermark
}

func (b *fakeBoardAPI) FindItemByKey(key string, ctx context.Context) (*BoardItem, error) {
	b.finds = append(b.finds, key)
	if err := b.findErr[key]; err != nil {
		return nil, err
	}
	return b.existing[key], nil
}

func (b *fakeBoardAPI) CreateItem(name string, values map[string]interface{}, groupID string, ctx context.Context) (string, error) {
	if b.createErr != nil {
		return "", b.createErr
	}
	b.creates = append(b.creates, name)
	b.nextID++
	return fmt.Sprintf("item-%d", b.nextID), nil
}

func (b *fakeBoardAPI) UpdateItem(itemID string, values map[string]interface{}, ctx context.Context) (string, error) {
	if b.updateErr != nil {
		return "", b.updateErr
	}
	b.updates = append(b.updates, itemID)
	return itemID, nil
}

func (b *fakeBoardAPI) CreateItems(items []BoardItemCreate, groupID string, ctx context.Context) ([]string, error) {
	b.batches = append(b.batches, items)
	if b.failBatch > 0 && len(b.batches) == b.failBatch {
		return nil, &WriteError{Op: "batch create", Err: fmt.Errorf("created 0 of %d items", len(items))}
	}
	ids := make([]string, len(items))
	for i := range items {
		b.nextID++
		ids[i] = fmt.Sprintf("item-%d", b.nextID)
	}
	return ids, nil
}
