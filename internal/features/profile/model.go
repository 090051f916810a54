package profile

import (
	"fmt"
	"time"

	"go-deskmigrate/internal/features/dedupe"
	"go-deskmigrate/internal/features/source"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account strategies decide which account a migrated contact lands in
const (
	AccountDomainMappingStrict = "domain_mapping_strict"
	AccountDomainMapping       = "domain_mapping"
	AccountSingle              = "single_account"
	AccountPerMailbox          = "mailbox_per_account"
)

// Agent strategies decide how source agents map onto destination agents
const (
	AgentCreateNew     = "create_new"
	AgentMatchExisting = "match_existing"
	AgentSkip          = "skip"
)

var validAccountStrategies = map[string]bool{
	AccountDomainMappingStrict: true,
	AccountDomainMapping:       true,
	AccountSingle:              true,
	AccountPerMailbox:          true,
}

var validAgentStrategies = map[string]bool{
	AgentCreateNew:     true,
	AgentMatchExisting: true,
	AgentSkip:          true,
}

var validImportModes = map[string]bool{
	"create": true,
	"update": true,
	"upsert": true,
}

// ImportProfile is the reusable configuration of a migration: where the
// source lives, how entities map, and how duplicates are handled.
// Multiple jobs may run against one profile over time; the lineage
// ledger is scoped to it.
type ImportProfile struct {
	ID   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name string             `json:"name" bson:"name"`

	SourceType string `json:"source_type" bson:"source_type"` // postgres, mysql, api
	Host       string `json:"host,omitempty" bson:"host,omitempty"`
	Port       int    `json:"port,omitempty" bson:"port,omitempty"`
	Database   string `json:"database,omitempty" bson:"database,omitempty"`
	Username   string `json:"username,omitempty" bson:"username,omitempty"`
	Password   string `json:"password,omitempty" bson:"password,omitempty"`
	APIBaseURL string `json:"api_base_url,omitempty" bson:"api_base_url,omitempty"`
	APIKey     string `json:"api_key,omitempty" bson:"api_key,omitempty"`

	AccountStrategy  string            `json:"account_strategy" bson:"account_strategy"`
	DefaultAccountID string            `json:"default_account_id,omitempty" bson:"default_account_id,omitempty"`
	DomainMappings   map[string]string `json:"domain_mappings,omitempty" bson:"domain_mappings,omitempty"` // email domain -> account name
	AgentStrategy    string            `json:"agent_strategy" bson:"agent_strategy"`

	StatusMap map[string]string `json:"status_map,omitempty" bson:"status_map,omitempty"`

	Dedupe           dedupe.MatchingStrategy `json:"dedupe" bson:"dedupe"`
	ImportMode       string                  `json:"import_mode" bson:"import_mode"` // create, update, upsert
	SkipDuplicates   bool                    `json:"skip_duplicates" bson:"skip_duplicates"`
	UpdateDuplicates bool                    `json:"update_duplicates" bson:"update_duplicates"`
	ContinueOnError  bool                    `json:"continue_on_error" bson:"continue_on_error"`

	Limit    int        `json:"limit,omitempty" bson:"limit,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty" bson:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty" bson:"date_to,omitempty"`

	IsActive  bool      `json:"is_active" bson:"is_active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// SourceConfig converts the profile's connection block to the source
// package's decoupled config
func (p *ImportProfile) SourceConfig(connectTimeout, fetchTimeout int) source.Config {
	return source.Config{
		SourceType:            p.SourceType,
		Host:                  p.Host,
		Port:                  p.Port,
		Database:              p.Database,
		Username:              p.Username,
		Password:              p.Password,
		APIBaseURL:            p.APIBaseURL,
		APIKey:                p.APIKey,
		ConnectTimeoutSeconds: connectTimeout,
		FetchTimeoutSeconds:   fetchTimeout,
	}
}

// Validate checks the enum fields and the source block
func (p *ImportProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch p.SourceType {
	case "postgres", "mysql":
		if p.Host == "" || p.Database == "" {
			return fmt.Errorf("host and database are required for a %s source", p.SourceType)
		}
	case "api":
		if p.APIBaseURL == "" {
			return fmt.Errorf("api_base_url is required for an api source")
		}
	default:
		return fmt.Errorf("unsupported source type %q", p.SourceType)
	}

	if p.AccountStrategy != "" && !validAccountStrategies[p.AccountStrategy] {
		return fmt.Errorf("unknown account strategy %q", p.AccountStrategy)
	}
	if p.AccountStrategy == AccountSingle && p.DefaultAccountID == "" {
		return fmt.Errorf("single_account strategy needs default_account_id")
	}
	if p.AgentStrategy != "" && !validAgentStrategies[p.AgentStrategy] {
		return fmt.Errorf("unknown agent strategy %q", p.AgentStrategy)
	}
	if p.ImportMode != "" && !validImportModes[p.ImportMode] {
		return fmt.Errorf("unknown import mode %q", p.ImportMode)
	}
	return nil
}
