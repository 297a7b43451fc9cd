package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/dispatch/internal/api"
	"github.com/ShayCichocki/dispatch/internal/budget"
	"github.com/ShayCichocki/dispatch/internal/config"
	"github.com/ShayCichocki/dispatch/internal/contract"
	"github.com/ShayCichocki/dispatch/internal/diagnostic"
	"github.com/ShayCichocki/dispatch/internal/refine"
	"github.com/ShayCichocki/dispatch/internal/routing"
	"github.com/ShayCichocki/dispatch/internal/state"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

// stateDirName is the per-project directory holding the run database, logs
// and the kill file.
const stateDirName = ".dispatch"

// staleReservationAge is how old a pending reservation must be before it is
// treated as abandoned by a crashed run.
const staleReservationAge = time.Hour

// projectStateDir returns the state directory under root.
func projectStateDir(root string) string {
	return filepath.Join(root, stateDirName)
}

// newClient creates the generation client from configuration.
func newClient(cfg *config.Config) (*api.Client, error) {
	key, _, err := config.ResolveAPIKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or anthropic.api_key", err)
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.PlannerModel),
		APIKey:        key,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
		MaxTokens:     cfg.Anthropic.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// plannerProfile returns the profile used for estimation and decomposition.
// A planner model outside the proposer set is priced at zero.
func plannerProfile(cfg *config.Config, router *routing.Manager) models.ProposerProfile {
	if p, ok := router.Proposer(cfg.Anthropic.PlannerModel); ok {
		return p
	}
	return models.ProposerProfile{Name: cfg.Anthropic.PlannerModel, Provider: "anthropic", Active: true}
}

// newRouter builds the routing manager with configured hard-stop keywords.
func newRouter(cfg *config.Config) (*routing.Manager, error) {
	detector := routing.NewHardStopDetector()
	for _, kw := range cfg.Routing.SecurityKeywords {
		detector.AddSecurityKeyword(kw)
	}
	for _, kw := range cfg.Routing.ArchitectureKeywords {
		detector.AddArchitectureKeyword(kw)
	}
	if cfg.Routing.KeywordsFile != "" {
		if err := detector.LoadKeywords(cfg.Routing.KeywordsFile); err != nil {
			return nil, fmt.Errorf("load keywords: %w", err)
		}
	}

	return routing.NewManager(routing.ManagerConfig{
		Proposers:        cfg.Routing.Proposers,
		Limits:           cfg.Budget,
		HardStopProposer: cfg.Routing.HardStopProposer,
		Detector:         detector,
	})
}

// newChecker wraps the configured compiler command in a result cache.
func newChecker(cfg *config.Config) (diagnostic.Checker, error) {
	d := cfg.Diagnostics
	inner := diagnostic.NewCommandChecker(d.Command, d.FileExtension, d.Timeout)
	checker, err := diagnostic.NewCachedChecker(inner, d.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create diagnostics cache: %w", err)
	}
	return checker, nil
}

// newContracts loads the OpenAPI document named in configuration. No document
// means contracts are not checked.
func newContracts(cfg *config.Config, root string) (refine.ContractCheckFunc, error) {
	path := cfg.Contracts.OpenAPIFile
	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	checker, err := contract.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}
	return checker.CheckContracts, nil
}

// openLedger opens the global spend database and returns a ledger capped at
// the emergency kill limit. Reservations abandoned by a crashed run are
// expired first.
func openLedger(cfg *config.Config) (*budget.Ledger, *state.DB, error) {
	db, err := openDB(state.GlobalDBPath())
	if err != nil {
		return nil, nil, err
	}
	if n, err := db.ExpireReservations(staleReservationAge); err == nil && n > 0 && verbose() {
		fmt.Printf("[DEBUG] Expired %d stale reservations\n", n)
	}
	return budget.NewLedger(db, cfg.Budget.EmergencyKill), db, nil
}

// openRunStore opens the project database for run records. Runs left in the
// running state by an earlier process are marked interrupted.
func openRunStore(cfg *config.Config, root string) (*state.DB, error) {
	path := cfg.State.DBPath
	if path == "" {
		path = state.ProjectDBPath(root)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if n, err := db.MarkInterrupted(); err == nil && n > 0 {
		printStatus("⚠", fmt.Sprintf("Marked %d interrupted run(s) from an earlier session", n), colorWarn)
	}
	return db, nil
}

func openDB(path string) (*state.DB, error) {
	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state database %s: %w", path, err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state database %s: %w", path, err)
	}
	return db, nil
}

// loadSpec reads a technical specification from a YAML or JSON file.
func loadSpec(path string) (*models.TechnicalSpecification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read specification: %w", err)
	}
	return parseSpec(data)
}

func parseSpec(data []byte) (*models.TechnicalSpecification, error) {
	var spec models.TechnicalSpecification
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse specification: %w", err)
	}
	if strings.TrimSpace(spec.FeatureName) == "" {
		return nil, errors.New("specification has no feature_name")
	}
	if len(spec.Objectives) == 0 {
		return nil, errors.New("specification has no objectives")
	}
	return &spec, nil
}

// writeFile writes data to path, creating parent directories.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
