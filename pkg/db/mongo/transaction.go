package mongo

import (
	"context"
	"fmt"
	apperrors "stayhub/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// TransactionFunc receives the session context as a plain context.Context so
// repositories can be called with it unchanged.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type sessionRunner struct {
	client *mongo.Client
	opts   *options.TransactionOptions
}

// NewTransactionManager reads at snapshot and commits with majority so the
// conflict query and the insert see one consistent view of a property's
// bookings.
func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &sessionRunner{
		client: client,
		opts: options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority()),
	}
}

// ExecuteTransaction runs fn inside WithTransaction, which retries the whole
// callback on TransientTransactionError (a write conflict on the property
// lock document) and the commit on UnknownTransactionCommitResult.
func (s *sessionRunner) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	}, s.opts)
	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	default:
		return fmt.Errorf("booking transaction: %w", err)
	}
}
