package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "execdash/internal/db"
	"execdash/internal/logger"
	"execdash/internal/snapshot"
	"execdash/internal/store"
)

var (
	ErrNotFound = errors.New("scenario not found")
	ErrInvalid  = errors.New("scenario name required")
)

// Input is a create or update request.
type Input struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Factors     Factors `json:"factors"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Store persists named factor sets together with the projection they
// produced against the snapshot current at save time.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStore(db *gorm.DB, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{db: db, log: log.With("component", "ScenarioStore")}
}

// List returns every scenario, newest first.
func (s *Store) List(ctx context.Context) ([]dbpkg.Scenario, error) {
	var rows []dbpkg.Scenario
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (s *Store) Get(ctx context.Context, id uint) (dbpkg.Scenario, error) {
	var row dbpkg.Scenario
	err := s.db.WithContext(ctx).Take(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, ErrNotFound
	}
	return row, err
}

// Create stores in and its projection against base.
func (s *Store) Create(ctx context.Context, in Input, base snapshot.Snapshot) (dbpkg.Scenario, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return dbpkg.Scenario{}, ErrInvalid
	}
	results, err := toJSONMap(Project(base, in.Factors))
	if err != nil {
		return dbpkg.Scenario{}, err
	}
	row := dbpkg.Scenario{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Factors:     factorsJSON(in.Factors),
		Results:     results,
		CreatedBy:   store.ActorFrom(ctx),
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return dbpkg.Scenario{}, err
	}
	// gorm's default:true swallows an explicit false on insert.
	if in.IsActive != nil && !*in.IsActive {
		if err := s.db.WithContext(ctx).Model(&row).Update("is_active", false).Error; err != nil {
			return dbpkg.Scenario{}, err
		}
		row.IsActive = false
	}
	s.audit(ctx, "INSERT", row.ID, nil, row)
	return row, nil
}

// Update replaces name, description and factors of scenario id and
// recomputes its projection against base.
func (s *Store) Update(ctx context.Context, id uint, in Input, base snapshot.Snapshot) (dbpkg.Scenario, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return dbpkg.Scenario{}, ErrInvalid
	}
	prev, err := s.Get(ctx, id)
	if err != nil {
		return dbpkg.Scenario{}, err
	}
	results, err := toJSONMap(Project(base, in.Factors))
	if err != nil {
		return dbpkg.Scenario{}, err
	}

	row := prev
	row.Name = name
	row.Description = strings.TrimSpace(in.Description)
	row.Factors = factorsJSON(in.Factors)
	row.Results = results
	if in.IsActive != nil {
		row.IsActive = *in.IsActive
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return dbpkg.Scenario{}, err
	}
	s.audit(ctx, "UPDATE", id, prev, row)
	return row, nil
}

func (s *Store) Delete(ctx context.Context, id uint) error {
	prev, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&dbpkg.Scenario{}, id).Error; err != nil {
		return err
	}
	s.audit(ctx, "DELETE", id, prev, nil)
	return nil
}

func (s *Store) audit(ctx context.Context, action string, id uint, before, after any) {
	err := dbpkg.AppendAudit(s.db.WithContext(ctx), dbpkg.AuditEntry{
		Actor:    store.ActorFrom(ctx),
		Action:   action,
		Table:    dbpkg.Scenario{}.TableName(),
		RecordID: strconv.FormatUint(uint64(id), 10),
		Old:      before,
		New:      after,
		At:       time.Now(),
	})
	if err != nil {
		s.log.Warn("audit write failed", "scenarioID", id, "error", err)
	}
}

// StoredFactors decodes the factors column of a saved scenario.
func StoredFactors(row dbpkg.Scenario) Factors {
	return FactorsFromMap(snapshot.MapFromJSON(row.Factors))
}

func factorsJSON(f Factors) datatypes.JSONMap {
	return datatypes.JSONMap(snapshot.MapToJSON(f.Map()))
}

func toJSONMap(v any) (datatypes.JSONMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return datatypes.JSONMap(m), nil
}
