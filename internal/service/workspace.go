package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atinyakov/BranchLift/internal/clock"
	"github.com/atinyakov/BranchLift/internal/kv"
	"github.com/atinyakov/BranchLift/internal/lookup"
	"github.com/atinyakov/BranchLift/internal/models"
	"github.com/atinyakov/BranchLift/internal/scheduler"
	"go.uber.org/zap"
)

// DefaultBuildDelay is how long a new environment stays in the building state.
const DefaultBuildDelay = 2 * time.Second

// AccountSource reports the active account.
type AccountSource interface {
	Current() *models.Account
}

// RepositoryLookup resolves an owner/name pair to repository metadata.
type RepositoryLookup interface {
	Lookup(ctx context.Context, owner, name string) (*models.Repository, error)
}

// BuildScheduler defers build completion per environment id.
type BuildScheduler interface {
	Schedule(id int64, delay time.Duration, fn func())
	Cancel(id int64) bool
	CancelAll()
}

// WorkspaceConfig carries the optional collaborators of a Workspace.
type WorkspaceConfig struct {
	Lookup     RepositoryLookup
	Builds     BuildScheduler
	BuildDelay time.Duration
	Clock      clock.Clock
	Log        *zap.Logger
}

// Snapshot is the full workspace of one account.
type Snapshot struct {
	Repositories []models.Repository  `json:"repositories"`
	Branches     []models.Branch      `json:"branches"`
	Environments []models.Environment `json:"environments"`
}

// Workspace holds the active account's collections in memory and writes the
// whole affected collection back to the store on every mutation.
type Workspace struct {
	store      kv.Store
	sessions   AccountSource
	lookup     RepositoryLookup
	builds     BuildScheduler
	buildDelay time.Duration
	clock      clock.Clock
	log        *zap.Logger

	// searching is set while a SearchRepository lookup is in flight.
	searching atomic.Bool

	mu       sync.Mutex
	owner    int64
	loaded   bool
	repos    []models.Repository
	branches []models.Branch
	envs     []models.Environment
}

// NewWorkspace builds a Workspace scoped to whatever account sessions reports.
func NewWorkspace(store kv.Store, sessions AccountSource, cfg WorkspaceConfig) *Workspace {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Builds == nil {
		cfg.Builds = scheduler.New(cfg.Log)
	}
	if cfg.BuildDelay <= 0 {
		cfg.BuildDelay = DefaultBuildDelay
	}
	return &Workspace{
		store:      store,
		sessions:   sessions,
		lookup:     cfg.Lookup,
		builds:     cfg.Builds,
		buildDelay: cfg.BuildDelay,
		clock:      cfg.Clock,
		log:        cfg.Log,
	}
}

// sampleBranches is shown until an account has persisted branches.
// It is demo data, not a record of synced branches.
func sampleBranches() []models.Branch {
	return []models.Branch{
		{ID: 1, Name: "main", Repository: "facebook/react"},
		{ID: 2, Name: "develop", Repository: "facebook/react"},
	}
}

func (w *Workspace) accountID() (int64, error) {
	acc := w.sessions.Current()
	if acc == nil {
		return 0, ErrNoSession
	}
	return acc.ID, nil
}

func (w *Workspace) readRepos(ctx context.Context, id int64) ([]models.Repository, error) {
	repos := []models.Repository{}
	if _, err := kv.GetJSON(ctx, w.store, reposKey(id), &repos); err != nil {
		return nil, fmt.Errorf("load repositories: %w", err)
	}
	return repos, nil
}

func (w *Workspace) readBranches(ctx context.Context, id int64) ([]models.Branch, error) {
	var branches []models.Branch
	ok, err := kv.GetJSON(ctx, w.store, branchesKey(id), &branches)
	if err != nil {
		return nil, fmt.Errorf("load branches: %w", err)
	}
	if !ok {
		return sampleBranches(), nil
	}
	if branches == nil {
		branches = []models.Branch{}
	}
	return branches, nil
}

func (w *Workspace) readEnvs(ctx context.Context, id int64) ([]models.Environment, error) {
	envs := []models.Environment{}
	if _, err := kv.GetJSON(ctx, w.store, envsKey(id), &envs); err != nil {
		return nil, fmt.Errorf("load environments: %w", err)
	}
	return envs, nil
}

// ensure loads every collection of account id unless it is already held.
// Callers must hold w.mu.
func (w *Workspace) ensure(ctx context.Context, id int64) error {
	if w.loaded && w.owner == id {
		return nil
	}
	repos, err := w.readRepos(ctx, id)
	if err != nil {
		return err
	}
	branches, err := w.readBranches(ctx, id)
	if err != nil {
		return err
	}
	envs, err := w.readEnvs(ctx, id)
	if err != nil {
		return err
	}
	w.owner, w.loaded = id, true
	w.repos, w.branches, w.envs = repos, branches, envs
	return nil
}

// Load reads all three collections of the active account from the store.
func (w *Workspace) Load(ctx context.Context) (Snapshot, error) {
	id, err := w.accountID()
	if err != nil {
		return Snapshot{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.loaded = false
	if err := w.ensure(ctx, id); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Repositories: slices.Clone(w.repos),
		Branches:     slices.Clone(w.branches),
		Environments: slices.Clone(w.envs),
	}, nil
}

// LoadRepositories returns the persisted repositories, or an empty slice.
func (w *Workspace) LoadRepositories(ctx context.Context) ([]models.Repository, error) {
	id, err := w.accountID()
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensure(ctx, id); err != nil {
		return nil, err
	}
	repos, err := w.readRepos(ctx, id)
	if err != nil {
		return nil, err
	}
	w.repos = repos
	return slices.Clone(repos), nil
}

// LoadBranches returns the persisted branches, or the two sample branches
// when none were ever persisted for the account.
func (w *Workspace) LoadBranches(ctx context.Context) ([]models.Branch, error) {
	id, err := w.accountID()
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensure(ctx, id); err != nil {
		return nil, err
	}
	branches, err := w.readBranches(ctx, id)
	if err != nil {
		return nil, err
	}
	w.branches = branches
	return slices.Clone(branches), nil
}

// LoadEnvironments returns the persisted environments, or an empty slice.
func (w *Workspace) LoadEnvironments(ctx context.Context) ([]models.Environment, error) {
	id, err := w.accountID()
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensure(ctx, id); err != nil {
		return nil, err
	}
	envs, err := w.readEnvs(ctx, id)
	if err != nil {
		return nil, err
	}
	w.envs = envs
	return slices.Clone(envs), nil
}

// AddRepository appends repo unless one with the same id is already tracked.
// It reports whether the collection changed.
func (w *Workspace) AddRepository(ctx context.Context, repo models.Repository) (bool, error) {
	id, err := w.accountID()
	if err != nil {
		return false, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensure(ctx, id); err != nil {
		return false, err
	}
	if slices.ContainsFunc(w.repos, func(r models.Repository) bool { return r.ID == repo.ID }) {
		return false, nil
	}

	next := append(slices.Clone(w.repos), repo)
	if err := kv.SetJSON(ctx, w.store, reposKey(id), next); err != nil {
		return false, fmt.Errorf("persist repositories: %w", err)
	}
	w.repos = next
	w.log.Info("repository added", zap.Int64("account_id", id), zap.String("repository", repo.Name))
	return true, nil
}

// SearchRepository resolves an "owner/name" query through the lookup and
// adds the result to the workspace. Only one search runs at a time; a second
// call while one is in flight is rejected with a ValidationError.
func (w *Workspace) SearchRepository(ctx context.Context, query string) (*models.Repository, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false, &ValidationError{Field: "query", Reason: "repository is required"}
	}
	if _, err := w.accountID(); err != nil {
		return nil, false, err
	}
	if w.lookup == nil {
		return nil, false, ErrNoLookup
	}

	owner, name, err := lookup.ParseQuery(query)
	if err != nil {
		return nil, false, err
	}

	if !w.searching.CompareAndSwap(false, true) {
		return nil, false, &ValidationError{Field: "query", Reason: "a repository search is already running"}
	}
	defer w.searching.Store(false)

	repo, err := w.lookup.Lookup(ctx, owner, name)
	if err != nil {
		w.log.Warn("repository lookup failed", zap.String("query", query), zap.Error(err))
		return nil, false, err
	}

	added, err := w.AddRepository(ctx, *repo)
	if err != nil {
		return nil, false, err
	}
	return repo, added, nil
}

// CreateEnvironment appends a building environment and schedules its
// transition to running after the build delay.
func (w *Workspace) CreateEnvironment(ctx context.Context, name string) (*models.Environment, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "environment name is required"}
	}
	id, err := w.accountID()
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensure(ctx, id); err != nil {
		return nil, err
	}

	now := w.clock.Now()
	env := models.Environment{
		ID:        nextID(now, w.envs, func(e models.Environment) int64 { return e.ID }),
		Name:      name,
		Status:    models.StatusBuilding,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
	next := append(slices.Clone(w.envs), env)
	if err := kv.SetJSON(ctx, w.store, envsKey(id), next); err != nil {
		return nil, fmt.Errorf("persist environments: %w", err)
	}
	w.envs = next

	w.builds.Schedule(env.ID, w.buildDelay, func() { w.completeBuild(id, env.ID) })
	w.log.Info("environment created",
		zap.Int64("account_id", id),
		zap.Int64("environment_id", env.ID),
		zap.String("name", env.Name),
	)
	out := env
	return &out, nil
}

// completeBuild flips a building environment to running. It does nothing if
// the environment or its account is no longer loaded.
func (w *Workspace) completeBuild(accountID, envID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.loaded || w.owner != accountID {
		w.log.Debug("build completion skipped, workspace switched", zap.Int64("environment_id", envID))
		return
	}
	idx := slices.IndexFunc(w.envs, func(e models.Environment) bool { return e.ID == envID })
	if idx < 0 || w.envs[idx].Status != models.StatusBuilding {
		return
	}

	next := slices.Clone(w.envs)
	next[idx].Status = models.StatusRunning
	if err := kv.SetJSON(context.Background(), w.store, envsKey(accountID), next); err != nil {
		w.log.Error("failed to persist build completion", zap.Int64("environment_id", envID), zap.Error(err))
		return
	}
	w.envs = next
	w.log.Info("environment running", zap.Int64("account_id", accountID), zap.Int64("environment_id", envID))
}

// RemoveEnvironment deletes the environment and cancels its pending build.
// It reports false when no environment has that id.
func (w *Workspace) RemoveEnvironment(ctx context.Context, envID int64) (bool, error) {
	id, err := w.accountID()
	if err != nil {
		return false, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensure(ctx, id); err != nil {
		return false, err
	}
	idx := slices.IndexFunc(w.envs, func(e models.Environment) bool { return e.ID == envID })
	if idx < 0 {
		return false, nil
	}

	next := slices.Delete(slices.Clone(w.envs), idx, idx+1)
	if err := kv.SetJSON(ctx, w.store, envsKey(id), next); err != nil {
		return false, fmt.Errorf("persist environments: %w", err)
	}
	w.envs = next
	w.builds.Cancel(envID)
	w.log.Info("environment removed", zap.Int64("account_id", id), zap.Int64("environment_id", envID))
	return true, nil
}

// Reset drops the in-memory collections and every pending build.
// Call it when the session ends.
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.builds.CancelAll()
	w.owner, w.loaded = 0, false
	w.repos, w.branches, w.envs = nil, nil, nil
}
