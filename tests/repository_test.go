// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/keithshino/accountUnlock/models"
	"github.com/keithshino/accountUnlock/repository"
	testingutil "github.com/keithshino/accountUnlock/testing"
	"github.com/keithshino/accountUnlock/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceCounterRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewSequenceCounterRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("SeededByMigrations", func(t *testing.T) {
			current, err := repo.Current(ctx, models.TaskIDCounter)
			require.NoError(t, err)
			assert.Equal(t, int64(0), current)
		})

		t.Run("SeedIsIdempotent", func(t *testing.T) {
			fixtures := testingutil.NewTestFixtures(testDB)
			require.NoError(t, fixtures.SetCounter(models.TaskIDCounter, 41))

			// Reseeding must not reset an existing counter
			require.NoError(t, repo.Seed(ctx, models.TaskIDCounter))

			current, err := repo.Current(ctx, models.TaskIDCounter)
			require.NoError(t, err)
			assert.Equal(t, int64(41), current)
		})

		t.Run("NextRequiresTransaction", func(t *testing.T) {
			_, err := repo.Next(ctx, models.TaskIDCounter)
			assert.Error(t, err)
		})

		t.Run("NextBumpsInsideTransaction", func(t *testing.T) {
			var got int64
			err := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				var err error
				got, err = repo.Next(txCtx, models.TaskIDCounter)
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, int64(42), got)
			assert.Equal(t, "A000042", models.FormatTaskID(got))

			current, err := repo.Current(ctx, models.TaskIDCounter)
			require.NoError(t, err)
			assert.Equal(t, int64(42), current)
		})

		t.Run("RollbackReturnsValue", func(t *testing.T) {
			before, err := repo.Current(ctx, models.TaskIDCounter)
			require.NoError(t, err)

			err = repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				if _, err := repo.Next(txCtx, models.TaskIDCounter); err != nil {
					return err
				}
				return fmt.Errorf("forced failure")
			})
			require.Error(t, err)

			after, err := repo.Current(ctx, models.TaskIDCounter)
			require.NoError(t, err)
			assert.Equal(t, before, after, "a rolled back allocation must not burn a value")
		})

		t.Run("MissingCounter", func(t *testing.T) {
			err := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				_, err := repo.Next(txCtx, "no_such_counter")
				return err
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, repository.ErrCounterNotFound)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSequenceCounterConcurrentAllocation(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewSequenceCounterRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		const workers = 20
		results := make(chan int64, workers)
		var wg sync.WaitGroup

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
					value, err := repo.Next(txCtx, models.TaskIDCounter)
					if err != nil {
						return err
					}
					results <- value
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[int64]bool, workers)
		for value := range results {
			assert.False(t, seen[value], "value %d allocated twice", value)
			seen[value] = true
		}
		require.Len(t, seen, workers)

		// The row lock serializes allocations, so the values are the
		// contiguous range 1..workers with no gaps.
		for i := int64(1); i <= workers; i++ {
			assert.True(t, seen[i], "value %d missing from allocation range", i)
		}

		return nil
	})
	require.NoError(t, err)
}

func TestTaskRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewTaskRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("CreateAndByTaskID", func(t *testing.T) {
			task := &models.Task{
				ID:             "A000001",
				RequesterName:  "Hanako Sato",
				RequesterEmail: "hanako@example.com",
				EmployeeName:   "Taro Yamada",
				EmployeeID:     "EMP-10234",
				Status:         models.TaskStatusNew,
				ReportStatus:   models.ReportStatusUnreported,
				CreatedAt:      utils.UTCNow(),
				UpdatedAt:      utils.UTCNow(),
			}
			require.NoError(t, repo.Create(ctx, task))

			found, err := repo.ByTaskID(ctx, "A000001")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "EMP-10234", found.EmployeeID)
			assert.Equal(t, models.TaskStatusNew, found.Status)
			assert.Empty(t, found.Log)
			assert.Nil(t, found.CompletedAt)
		})

		t.Run("ByTaskIDNotFound", func(t *testing.T) {
			found, err := repo.ByTaskID(ctx, "A999999")
			require.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("UpdateLifecycle", func(t *testing.T) {
			task, err := repo.ByTaskID(ctx, "A000001")
			require.NoError(t, err)
			require.NotNil(t, task)

			completedBy := "staff@example.co.jp"
			completedAt := utils.UTCNow()
			task.Status = models.TaskStatusUnlocked
			task.ReportStatus = models.ReportStatusReported
			task.Log = "[2025/07/01 14:30 by staff@example.co.jp] Status changed from '新規受付' to 'ロック解除済み'"
			task.CompletedBy = &completedBy
			task.CompletedAt = &completedAt
			task.UpdatedAt = utils.UTCNow()

			require.NoError(t, repo.UpdateLifecycle(ctx, task))

			saved, err := repo.ByTaskID(ctx, "A000001")
			require.NoError(t, err)
			require.NotNil(t, saved)
			assert.Equal(t, models.TaskStatusUnlocked, saved.Status)
			assert.Equal(t, models.ReportStatusReported, saved.ReportStatus)
			assert.Contains(t, saved.Log, "Status changed from")
			require.NotNil(t, saved.CompletedBy)
			assert.Equal(t, completedBy, *saved.CompletedBy)
			require.NotNil(t, saved.CompletedAt)
		})

		t.Run("UpdateLifecycleMissingTask", func(t *testing.T) {
			ghost := &models.Task{ID: "A777777", Status: models.TaskStatusInProgress, ReportStatus: models.ReportStatusUnreported}
			err := repo.UpdateLifecycle(ctx, ghost)
			assert.Error(t, err)
		})

		t.Run("ListForRequesterCapsAndOrders", func(t *testing.T) {
			for i := 2; i <= 13; i++ {
				task, err := fixtures.CreateTestTask(models.FormatTaskID(int64(i)), "hanako@example.com")
				require.NoError(t, err)
				// Spread creation times so ordering is deterministic
				newer := time.Now().UTC().Add(time.Duration(i) * time.Second)
				require.NoError(t, testDB.DB.Model(task).Update("created_at", newer).Error)
			}

			tasks, err := repo.ListForRequester(ctx, "hanako@example.com", utils.ClientTaskListLimit)
			require.NoError(t, err)
			require.Len(t, tasks, utils.ClientTaskListLimit)
			assert.Equal(t, "A000013", tasks[0].ID, "newest task first")
			for i := 1; i < len(tasks); i++ {
				assert.False(t, tasks[i].CreatedAt.After(tasks[i-1].CreatedAt))
			}
		})

		t.Run("ByFilterStatus", func(t *testing.T) {
			status := models.TaskStatusUnlocked
			tasks, err := repo.ByFilter(ctx, models.TaskFilter{Status: &status}, "", 0, 0)
			require.NoError(t, err)
			require.NotEmpty(t, tasks)
			for _, task := range tasks {
				assert.Equal(t, models.TaskStatusUnlocked, task.Status)
			}
		})

		t.Run("Count", func(t *testing.T) {
			email := "hanako@example.com"
			count, err := repo.Count(ctx, models.TaskFilter{RequesterEmail: &email})
			require.NoError(t, err)
			assert.Equal(t, int64(13), count)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestUserRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewUserRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		user, err := fixtures.CreateTestUser(models.RoleClient)
		require.NoError(t, err)

		t.Run("ByEmail", func(t *testing.T) {
			found, err := repo.ByEmail(ctx, user.Email)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, user.ID, found.ID)
		})

		t.Run("ByEmailNotFound", func(t *testing.T) {
			found, err := repo.ByEmail(ctx, "nobody@example.com")
			require.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("ByGoogleSubject", func(t *testing.T) {
			googleUser, err := fixtures.CreateGoogleTestUser("support@example.co.jp", "google-sub-123", models.RoleSupport)
			require.NoError(t, err)

			found, err := repo.ByGoogleSubject(ctx, "google-sub-123")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, googleUser.ID, found.ID)
			assert.True(t, found.IsSupport())
		})

		t.Run("LinkGoogleAccount", func(t *testing.T) {
			require.NoError(t, repo.LinkGoogleAccount(ctx, user.ID, "google-sub-456", "Linked Name", models.RoleClient))

			found, err := repo.ByGoogleSubject(ctx, "google-sub-456")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, user.ID, found.ID)
			assert.Equal(t, models.ProviderGoogle, found.Provider)
			assert.Equal(t, "Linked Name", found.DisplayName)
		})

		t.Run("UpdateLastLogin", func(t *testing.T) {
			require.NoError(t, repo.UpdateLastLogin(ctx, user.ID))

			found, err := repo.ByEmail(ctx, user.Email)
			require.NoError(t, err)
			require.NotNil(t, found)
			require.NotNil(t, found.LastLoginAt)
			assert.WithinDuration(t, time.Now(), *found.LastLoginAt, time.Minute)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestUserSessionRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewUserSessionRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		user, err := fixtures.CreateTestUser(models.RoleClient)
		require.NoError(t, err)

		session, err := fixtures.CreateTestSession(user.ID)
		require.NoError(t, err)

		t.Run("BySessionToken", func(t *testing.T) {
			found, err := repo.BySessionToken(ctx, session.SessionToken)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, session.ID, found.ID)
			assert.True(t, found.IsValid())
		})

		t.Run("ByRefreshToken", func(t *testing.T) {
			found, err := repo.ByRefreshToken(ctx, *session.RefreshToken)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, session.ID, found.ID)
		})

		t.Run("RevokeSession", func(t *testing.T) {
			require.NoError(t, repo.RevokeSession(ctx, session.ID))

			found, err := repo.BySessionToken(ctx, session.SessionToken)
			require.NoError(t, err)
			if found != nil {
				assert.False(t, found.IsValid())
			}
		})

		t.Run("RevokeAllUserSessions", func(t *testing.T) {
			first, err := fixtures.CreateTestSession(user.ID)
			require.NoError(t, err)
			second, err := fixtures.CreateTestSession(user.ID)
			require.NoError(t, err)
			_ = first
			_ = second

			require.NoError(t, repo.RevokeAllUserSessions(ctx, user.ID))

			active, err := repo.ListActiveSessionsByUser(ctx, user.ID)
			require.NoError(t, err)
			assert.Empty(t, active)
		})

		return nil
	})
	require.NoError(t, err)
}
