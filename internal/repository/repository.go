// Package repository provides the tenant-scoped PostgreSQL persistence layer.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// repositoryImpl is the concrete implementation of Repository interface.
type repositoryImpl struct {
	db   *sqlx.DB
	exec sqlx.ExtContext
	inTx bool

	client       ClientRepository
	conversation ConversationRepository
	message      MessageRepository
	connection   ConnectionRepository
	protocol     ProtocolRepository
	user         UserRepository
	tag          TagRepository
	template     TemplateRepository
	rule         RuleRepository
}

// NewRepository creates a new repository instance.
func NewRepository(db *sqlx.DB) Repository {
	return newRepository(db, db, false)
}

func newRepository(db *sqlx.DB, exec sqlx.ExtContext, inTx bool) *repositoryImpl {
	return &repositoryImpl{
		db:           db,
		exec:         exec,
		inTx:         inTx,
		client:       NewClientRepository(exec),
		conversation: NewConversationRepository(exec),
		message:      NewMessageRepository(exec),
		connection:   NewConnectionRepository(exec),
		protocol:     NewProtocolRepository(exec),
		user:         NewUserRepository(exec),
		tag:          NewTagRepository(exec),
		template:     NewTemplateRepository(exec),
		rule:         NewRuleRepository(exec),
	}
}

func (r *repositoryImpl) Client() ClientRepository             { return r.client }
func (r *repositoryImpl) Conversation() ConversationRepository { return r.conversation }
func (r *repositoryImpl) Message() MessageRepository           { return r.message }
func (r *repositoryImpl) Connection() ConnectionRepository     { return r.connection }
func (r *repositoryImpl) Protocol() ProtocolRepository         { return r.protocol }
func (r *repositoryImpl) User() UserRepository                 { return r.user }
func (r *repositoryImpl) Tag() TagRepository                   { return r.tag }
func (r *repositoryImpl) Template() TemplateRepository         { return r.template }
func (r *repositoryImpl) Rule() RuleRepository                 { return r.rule }

// WithTx runs fn in a transaction. Nested calls reuse the outer transaction.
func (r *repositoryImpl) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(newRepository(r.db, tx, true)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks if the database connection is healthy.
func (r *repositoryImpl) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return r.db.PingContext(ctx)
}
