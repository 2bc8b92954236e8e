package sync

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/config"
)

const (
	// DefaultChunkSize is the number of items submitted per batch create
	// during a full sync.
	DefaultChunkSize = 100

	// DefaultPartnerType is the business-partner discriminator used in
	// ledger filters. Only partners of this type are synchronized.
	DefaultPartnerType = "cSupplier"
)

type Config struct {
	API            APISettings
	Board          BoardSettings
	Ledger         LedgerSettings
	ColumnMappings ColumnMappings `yaml:"columnMappings"`
}

type APISettings struct {
	Keys struct {
		Board string
	}
	Endpoints struct {
		Ledger string
		Board  string
	}
}

// LedgerSettings holds the Service Layer login credentials and query settings.
type LedgerSettings struct {
	CompanyDB   string `yaml:"companyDB"`
	Username    string
	Password    string
	PartnerType string `yaml:"partnerType"`
}

// BoardSettings identifies the destination board and the group items are
// created in.
type BoardSettings struct {
	ID        string
	GroupName string `yaml:"groupName"`
	ChunkSize int    `yaml:"chunkSize"`
}

// ColumnMappings maps board column ids to ledger source paths.
// Source paths may carry gjson modifiers (e.g. "Country|@countryName").
type ColumnMappings struct {
	// Key is the numeric matching-key column used for identity resolution.
	Key KeyColumn
	// Watermark names the date+time column whose most recent value bounds
	// delta runs. It should be one of the DateTimes columns.
	Watermark string
	Texts     map[string]string
	Dates     map[string]string
	DateTimes map[string]DateTimeColumn `yaml:"dateTimes"`
}

// KeyColumn pairs the matching-key column id with its ledger source path.
type KeyColumn struct {
	Column string
	Path   string
}

// DateTimeColumn composes a board date+time value from a ledger date path and
// a separate integer time-of-day path.
type DateTimeColumn struct {
	Date string
	Time string
}

// SourceFields returns every ledger field referenced by the mappings with
// modifiers stripped, deduplicated and sorted.
func (m ColumnMappings) SourceFields() []string {
	seen := make(map[string]bool)
	add := func(path string) {
		if i := strings.IndexByte(path, '|'); i >= 0 {
			path = path[:i]
		}
		if path != "" {
			seen[path] = true
		}
	}
	add(m.Key.Path)
	for _, path := range m.Texts {
		add(path)
	}
	for _, path := range m.Dates {
		add(path)
	}
	for _, dt := range m.DateTimes {
		add(dt.Date)
		add(dt.Time)
	}
	result := make([]string, 0, len(seen))
	for field := range seen {
		result = append(result, field)
	}
	sort.Strings(result)
	return result
}

type YAMLConfigUnmarshaler struct{}

// Unmarshal reads the sync configuration from one or more YAML sources.
// Later sources override earlier ones and ${VAR} references are expanded
// through lookupEnv.
func (u YAMLConfigUnmarshaler) Unmarshal(lookupEnv func(string) (string, bool), sources ...io.Reader) (Config, error) {
	var result Config
	var options []config.YAMLOption
	for _, s := range sources {
		options = append(options, config.Source(s))
	}
	options = append(options, config.Expand(lookupEnv))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml config %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml config %w", key, cause)
	}
	key := "api"
	err = yaml.Get(key).Populate(&result.API)
	if err != nil {
		return result, readError(key, err)
	}
	key = "board"
	err = yaml.Get(key).Populate(&result.Board)
	if err != nil {
		return result, readError(key, err)
	}
	key = "ledger"
	err = yaml.Get(key).Populate(&result.Ledger)
	if err != nil {
		return result, readError(key, err)
	}
	key = "columnMappings"
	err = yaml.Get(key).Populate(&result.ColumnMappings)
	if err != nil {
		return result, readError(key, err)
	}

	result.applyDefaults()
	return result, result.validate()
}

func (c *Config) applyDefaults() {
	if c.Board.ChunkSize <= 0 {
		c.Board.ChunkSize = DefaultChunkSize
	}
	if c.Ledger.PartnerType == "" {
		c.Ledger.PartnerType = DefaultPartnerType
	}
}

func (c Config) validate() error {
	if c.Board.ID == "" {
		return errors.New("board id is required")
	}
	if c.ColumnMappings.Key.Column == "" || c.ColumnMappings.Key.Path == "" {
		return errors.New("matching-key column mapping is required")
	}
	return nil
}
