package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"
)

const (
	suppliersPath = "/BusinessPartners"

	// Each page request gets a small bounded retry before the whole fetch
	// fails. A failed page invalidates the run; partial sets are never used.
	pageRetryAttempts = 2
	pageRetryBackoff  = time.Second
)

// supplierIdentityFields are always requested regardless of the configured
// column mappings: the natural keys and the timestamps the delta filter and
// watermark depend on.
var supplierIdentityFields = []string{
	"CardCode",
	"CardType",
	"FederalTaxID",
	"CardName",
	"CreateDate",
	"CreateTime",
	"UpdateDate",
	"UpdateTime",
}

// LedgerFetcher retrieves supplier records from the ledger, page by page.
type LedgerFetcher struct {
	*SyncContext
}

// FetchSuppliers retrieves every supplier matching filter, following the
// ledger's pagination link until none is returned. Records are accumulated in
// the order the ledger returns them.
func (f LedgerFetcher) FetchSuppliers(session LedgerSession, filter string, ctx context.Context) ([]Supplier, error) {
	path := fmt.Sprintf("%s?$filter=%s&$select=%s",
		suppliersPath, filter, strings.Join(f.selectFields(), ","))

	var result []Supplier
	page := 1
	for path != "" {
		body, err := f.fetchPage(session, path, page, ctx)
		if err != nil {
			return nil, err
		}
		data := gjson.Parse(body)
		for _, v := range data.Get("value").Array() {
			result = append(result, Supplier{Source: Source{data: v}})
		}
		path = nextPageLink(data)
		page++
	}

	f.Logger.Info().Int("suppliers", len(result)).Int("pages", page-1).Msg("ledger fetch complete")
	return result, nil
}

func (f LedgerFetcher) fetchPage(session LedgerSession, path string, page int, ctx context.Context) (string, error) {
	var body string
	backoff := retry.WithMaxRetries(pageRetryAttempts, retry.NewConstant(pageRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := session.Query(path, ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		body = s
		return nil
	})
	if err != nil {
		return "", &PageError{Page: page, Err: err}
	}
	return body, nil
}

func (f LedgerFetcher) selectFields() []string {
	fields := f.Config.ColumnMappings.SourceFields()
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		seen[field] = true
	}
	for _, field := range supplierIdentityFields {
		if !seen[field] {
			fields = append(fields, field)
		}
	}
	return fields
}

func nextPageLink(data gjson.Result) string {
	if link := data.Get(`odata\.nextLink`); link.Exists() {
		return link.String()
	}
	return data.Get(`@odata\.nextLink`).String()
}
