package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// SQLStore is a gorm-backed ContextStore.
type SQLStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ ContextStore = (*SQLStore)(nil)

// OpenSQLite opens a sqlite database at dsn. Use ":memory:" for an
// ephemeral database.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// NewSQLStore wraps db and migrates the schema. A nil logger disables
// logging.
func NewSQLStore(db *gorm.DB, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	err := db.AutoMigrate(
		&ContextRecord{},
		&MessageRecord{},
		&TaskRecord{},
		&ResponseRecord{},
		&AgentRecord{},
	)
	if err != nil {
		return nil, err
	}
	return &SQLStore{
		db:     db,
		logger: logger.With(zap.String("component", "context_store")),
	}, nil
}

func (s *SQLStore) CreateContext(ctx context.Context, contextID string, metadata map[string]string) error {
	record := &ContextRecord{ID: contextID, Metadata: metadata}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record).Error
	if err != nil {
		return err
	}
	s.logger.Debug("context created", zap.String("context_id", contextID))
	return nil
}

func (s *SQLStore) GetContext(ctx context.Context, contextID string) (*ContextRecord, error) {
	var record ContextRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", contextID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *SQLStore) AddMessage(ctx context.Context, msg *MessageRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&ContextRecord{}).
			Where("id = ?", msg.ContextID).
			Update("updated_at", time.Now()).Error
	})
}

func (s *SQLStore) ContextMessages(ctx context.Context, contextID string) ([]*MessageRecord, error) {
	var messages []*MessageRecord
	err := s.db.WithContext(ctx).
		Where("context_id = ?", contextID).
		Order("created_at").
		Find(&messages).Error
	return messages, err
}

func (s *SQLStore) CreateTask(ctx context.Context, task *TaskRecord) error {
	if task.Status == "" {
		task.Status = TaskPending
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(task).Error
	if err != nil {
		return err
	}
	s.logger.Debug("task created",
		zap.String("task_id", task.ID), zap.String("context_id", task.ContextID))
	return nil
}

func (s *SQLStore) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, errorMessage string) error {
	values := map[string]any{"status": status, "updated_at": time.Now()}
	if errorMessage != "" {
		values["error_message"] = errorMessage
	}
	result := s.db.WithContext(ctx).Model(&TaskRecord{}).Where("id = ?", taskID).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CompleteTask(ctx context.Context, taskID string, finalResponse string, executionSeconds float64) error {
	result := s.db.WithContext(ctx).Model(&TaskRecord{}).Where("id = ?", taskID).Updates(map[string]any{
		"status":            TaskCompleted,
		"final_response":    finalResponse,
		"execution_seconds": executionSeconds,
		"updated_at":        time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) GetTask(ctx context.Context, taskID string) (*TaskRecord, []*ResponseRecord, error) {
	var task TaskRecord
	err := s.db.WithContext(ctx).First(&task, "id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var responses []*ResponseRecord
	err = s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at").
		Find(&responses).Error
	if err != nil {
		return nil, nil, err
	}
	return &task, responses, nil
}

func (s *SQLStore) AddAgentResponse(ctx context.Context, resp *ResponseRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(resp).Error
}

func (s *SQLStore) RegisterAgent(ctx context.Context, agent *AgentRecord) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(agent).Error
	if err != nil {
		return err
	}
	s.logger.Debug("agent registered", zap.String("agent_id", agent.ID))
	return nil
}

func (s *SQLStore) GetAvailableAgents(ctx context.Context) ([]*AgentRecord, error) {
	var agents []*AgentRecord
	err := s.db.WithContext(ctx).
		Where("available = ?", true).
		Order("id").
		Find(&agents).Error
	return agents, err
}

func (s *SQLStore) SetAgentAvailability(ctx context.Context, agentID string, available bool) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&AgentRecord{}).Where("id = ?", agentID).Updates(map[string]any{
		"available":         available,
		"last_health_check": &now,
		"updated_at":        now,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
