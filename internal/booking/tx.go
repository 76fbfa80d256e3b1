package booking

import (
	"context"
	"fmt"

	"github.com/avstrong/reservations/internal/logger"
)

// The room row lock taken by LockRoom provides the isolation the booking check needs.
const isolationLevel = "READ COMMITTED"

func runInTransaction(
	ctx context.Context,
	l *logger.Logger,
	store StoreWriter,
	name string,
	fn func(ctx context.Context) error,
) (err error) {
	ctx, err = store.BeginTransaction(ctx, isolationLevel)
	if err != nil {
		return fmt.Errorf("begin %s transaction: %w", name, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := store.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback %s transaction after panic %v", name, p)
			}

			l.LogInfo("Transaction %s has been roll backed after panic", name)

			panic(p)
		}

		if err != nil {
			if rbErr := store.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback %s transaction after error %v", name, rbErr.Error())
			}

			l.LogDebugf("Transaction %s has been roll backed after error: %v", name, err)

			return
		}

		if err = store.CommitTransaction(ctx); err != nil {
			err = fmt.Errorf("commit %s transaction: %w", name, err)

			return
		}

		l.LogDebugf("Transaction %s has been committed", name)
	}()

	return fn(ctx)
}
