// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"fmt"
	"testing"

	"github.com/keithshino/accountUnlock/app/dto"
	businessflow "github.com/keithshino/accountUnlock/business_flow"
	"github.com/keithshino/accountUnlock/models"
	"github.com/keithshino/accountUnlock/repository"
	testingutil "github.com/keithshino/accountUnlock/testing"
	"github.com/keithshino/accountUnlock/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientActor(email string) businessflow.Actor {
	return businessflow.Actor{UserID: 1, Email: email, DisplayName: "Client", Role: models.RoleClient}
}

func supportActor(email string) businessflow.Actor {
	return businessflow.Actor{UserID: 2, Email: email, DisplayName: "Support", Role: models.RoleSupport}
}

func newTaskFlow(testDB *testingutil.TestDB) businessflow.TaskFlow {
	return businessflow.NewTaskFlow(
		repository.NewTaskRepository(testDB.DB),
		repository.NewSequenceCounterRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		testDB.DB,
		nil,
	)
}

func testMetadata() *businessflow.ClientMetadata {
	return businessflow.NewClientMetadata("127.0.0.1", "Test User Agent")
}

func TestSubmitTasksMintsSequentialIDs(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTaskFlow(testDB)
		ctx := testingutil.CreateTestContext()
		actor := clientActor("requester@example.com")

		resp, err := flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
			RequesterName: "Hanako Sato",
			Targets: []dto.UnlockTarget{
				{EmployeeName: "Taro Yamada", EmployeeID: "EMP-1"},
				{EmployeeName: "Jiro Suzuki", EmployeeID: "EMP-2"},
				{EmployeeName: "Saburo Tanaka", EmployeeID: "EMP-3"},
			},
		}, actor, testMetadata())
		require.NoError(t, err)
		assert.Equal(t, []string{"A000001", "A000002", "A000003"}, resp.CreatedTaskIDs)

		// A second submission continues where the first left off
		resp, err = flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
			RequesterName: "Hanako Sato",
			Targets:       []dto.UnlockTarget{{EmployeeName: "Shiro Ito", EmployeeID: "EMP-4"}},
		}, actor, testMetadata())
		require.NoError(t, err)
		assert.Equal(t, []string{"A000004"}, resp.CreatedTaskIDs)

		// New tasks start in the initial lifecycle state
		taskRepo := repository.NewTaskRepository(testDB.DB)
		task, err := taskRepo.ByTaskID(ctx, "A000001")
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, models.TaskStatusNew, task.Status)
		assert.Equal(t, models.ReportStatusUnreported, task.ReportStatus)
		assert.Equal(t, "requester@example.com", task.RequesterEmail)
		assert.Empty(t, task.Log)

		return nil
	})
	require.NoError(t, err)
}

func TestSubmitTasksValidation(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTaskFlow(testDB)
		ctx := testingutil.CreateTestContext()
		actor := clientActor("requester@example.com")

		_, err := flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
			RequesterName: "Hanako Sato",
			Targets:       nil,
		}, actor, testMetadata())
		require.Error(t, err)
		assert.ErrorIs(t, err, businessflow.ErrEmptySubmission)

		oversized := make([]dto.UnlockTarget, utils.MaxUnlockBatchSize+1)
		for i := range oversized {
			oversized[i] = dto.UnlockTarget{EmployeeName: "Employee", EmployeeID: fmt.Sprintf("EMP-%d", i)}
		}
		_, err = flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
			RequesterName: "Hanako Sato",
			Targets:       oversized,
		}, actor, testMetadata())
		require.Error(t, err)
		assert.ErrorIs(t, err, businessflow.ErrSubmissionTooLarge)

		return nil
	})
	require.NoError(t, err)
}

func TestSubmitTasksPartialFailureKeepsEarlierTasks(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTaskFlow(testDB)
		ctx := testingutil.CreateTestContext()
		actor := clientActor("requester@example.com")

		// The second target collides with a pre-existing task ID, so its
		// insert fails after the first target has already committed.
		fixtures := testingutil.NewTestFixtures(testDB)
		_, err := fixtures.CreateTestTask("A000002", "someone-else@example.com")
		require.NoError(t, err)

		resp, err := flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
			RequesterName: "Hanako Sato",
			Targets: []dto.UnlockTarget{
				{EmployeeName: "Taro Yamada", EmployeeID: "EMP-1"},
				{EmployeeName: "Jiro Suzuki", EmployeeID: "EMP-2"},
				{EmployeeName: "Saburo Tanaka", EmployeeID: "EMP-3"},
			},
		}, actor, testMetadata())
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, []string{"A000001"}, resp.CreatedTaskIDs)

		// The first task survived the failed submission
		taskRepo := repository.NewTaskRepository(testDB.DB)
		task, err := taskRepo.ByTaskID(ctx, "A000001")
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, "requester@example.com", task.RequesterEmail)

		// The failed allocation rolled back, so the counter still points
		// at the last committed task.
		counterRepo := repository.NewSequenceCounterRepository(testDB.DB)
		current, err := counterRepo.Current(ctx, models.TaskIDCounter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), current)

		return nil
	})
	require.NoError(t, err)
}

func TestSubmitTasksMissingCounter(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTaskFlow(testDB)
		ctx := testingutil.CreateTestContext()
		actor := clientActor("requester@example.com")

		require.NoError(t, testDB.DB.Exec("DELETE FROM sequence_counters WHERE name = ?", models.TaskIDCounter).Error)

		_, err := flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
			RequesterName: "Hanako Sato",
			Targets:       []dto.UnlockTarget{{EmployeeName: "Taro Yamada", EmployeeID: "EMP-1"}},
		}, actor, testMetadata())
		require.Error(t, err)
		assert.ErrorIs(t, err, businessflow.ErrMissingCounter)

		return nil
	})
	require.NoError(t, err)
}

func TestListTasksClientCap(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTaskFlow(testDB)
		ctx := testingutil.CreateTestContext()
		actor := clientActor("requester@example.com")

		// 12 single-target submissions from the same requester
		for i := 0; i < 12; i++ {
			_, err := flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
				RequesterName: "Hanako Sato",
				Targets:       []dto.UnlockTarget{{EmployeeName: "Employee", EmployeeID: fmt.Sprintf("EMP-%d", i)}},
			}, actor, testMetadata())
			require.NoError(t, err)
		}
		// A task from another requester must stay invisible
		_, err := flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
			RequesterName: "Someone Else",
			Targets:       []dto.UnlockTarget{{EmployeeName: "Other", EmployeeID: "EMP-X"}},
		}, clientActor("other@example.com"), testMetadata())
		require.NoError(t, err)

		resp, err := flow.ListTasks(ctx, &dto.ListTasksRequest{}, actor)
		require.NoError(t, err)
		require.Len(t, resp.Tasks, utils.ClientTaskListLimit)
		assert.Equal(t, "A000012", resp.Tasks[0].ID, "newest first")
		for _, task := range resp.Tasks {
			assert.Equal(t, "requester@example.com", task.RequesterEmail)
		}

		return nil
	})
	require.NoError(t, err)
}

func TestListTasksSupportSeesEverything(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTaskFlow(testDB)
		ctx := testingutil.CreateTestContext()

		for i := 0; i < 12; i++ {
			_, err := flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
				RequesterName: "Hanako Sato",
				Targets:       []dto.UnlockTarget{{EmployeeName: "Employee", EmployeeID: fmt.Sprintf("EMP-%d", i)}},
			}, clientActor(fmt.Sprintf("requester%d@example.com", i%3)), testMetadata())
			require.NoError(t, err)
		}

		support := supportActor("staff@example.co.jp")

		resp, err := flow.ListTasks(ctx, &dto.ListTasksRequest{PageSize: 100}, support)
		require.NoError(t, err)
		assert.Equal(t, int64(12), resp.Total)
		assert.Len(t, resp.Tasks, 12)

		// Paging
		resp, err = flow.ListTasks(ctx, &dto.ListTasksRequest{Page: 2, PageSize: 5}, support)
		require.NoError(t, err)
		assert.Equal(t, int64(12), resp.Total)
		assert.Len(t, resp.Tasks, 5)
		assert.Equal(t, "A000007", resp.Tasks[0].ID)

		// Status filter
		status := string(models.TaskStatusNew)
		resp, err = flow.ListTasks(ctx, &dto.ListTasksRequest{Status: &status, PageSize: 100}, support)
		require.NoError(t, err)
		assert.Equal(t, int64(12), resp.Total)

		return nil
	})
	require.NoError(t, err)
}

func TestGetTaskAccessControl(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTaskFlow(testDB)
		ctx := testingutil.CreateTestContext()
		owner := clientActor("owner@example.com")

		_, err := flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
			RequesterName: "Owner",
			Targets:       []dto.UnlockTarget{{EmployeeName: "Employee", EmployeeID: "EMP-1"}},
		}, owner, testMetadata())
		require.NoError(t, err)

		t.Run("OwnerCanRead", func(t *testing.T) {
			task, err := flow.GetTask(ctx, "A000001", owner)
			require.NoError(t, err)
			assert.Equal(t, "A000001", task.ID)
		})

		t.Run("StrangerCannotRead", func(t *testing.T) {
			_, err := flow.GetTask(ctx, "A000001", clientActor("stranger@example.com"))
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrTaskAccessDenied)
		})

		t.Run("SupportCanRead", func(t *testing.T) {
			task, err := flow.GetTask(ctx, "A000001", supportActor("staff@example.co.jp"))
			require.NoError(t, err)
			assert.Equal(t, "A000001", task.ID)
		})

		t.Run("NotFound", func(t *testing.T) {
			_, err := flow.GetTask(ctx, "A999999", owner)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrTaskNotFound)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestUpdateTaskLifecycle(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTaskFlow(testDB)
		ctx := testingutil.CreateTestContext()
		support := supportActor("staff@example.co.jp")

		_, err := flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
			RequesterName: "Hanako Sato",
			Targets:       []dto.UnlockTarget{{EmployeeName: "Taro Yamada", EmployeeID: "EMP-1"}},
		}, clientActor("requester@example.com"), testMetadata())
		require.NoError(t, err)

		t.Run("StatusChangeAppendsLogLine", func(t *testing.T) {
			updated, err := flow.UpdateTask(ctx, "A000001", &dto.UpdateTaskRequest{
				Status:       string(models.TaskStatusInProgress),
				ReportStatus: string(models.ReportStatusUnreported),
				Log:          "",
			}, support, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, string(models.TaskStatusInProgress), updated.Status)
			assert.Contains(t, updated.Log, "by staff@example.co.jp] Status changed from '新規受付' to '対応中'")
			assert.Nil(t, updated.CompletedAt)
		})

		t.Run("NoOpEditLeavesLogAlone", func(t *testing.T) {
			before, err := flow.GetTask(ctx, "A000001", support)
			require.NoError(t, err)

			var auditBefore int64
			require.NoError(t, testDB.DB.Table("audit_logs").
				Where("action = ?", models.AuditActionTaskUpdated).
				Count(&auditBefore).Error)

			after, err := flow.UpdateTask(ctx, "A000001", &dto.UpdateTaskRequest{
				Status:       before.Status,
				ReportStatus: before.ReportStatus,
				Log:          before.Log,
			}, support, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, before.Log, after.Log)
			assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

			var auditAfter int64
			require.NoError(t, testDB.DB.Table("audit_logs").
				Where("action = ?", models.AuditActionTaskUpdated).
				Count(&auditAfter).Error)
			assert.Equal(t, auditBefore, auditAfter, "an edit that changed nothing is not audited")
		})

		t.Run("ReportingStampsCompletion", func(t *testing.T) {
			current, err := flow.GetTask(ctx, "A000001", support)
			require.NoError(t, err)

			updated, err := flow.UpdateTask(ctx, "A000001", &dto.UpdateTaskRequest{
				Status:       string(models.TaskStatusUnlocked),
				ReportStatus: string(models.ReportStatusReported),
				Log:          current.Log,
			}, support, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, updated.CompletedAt)
			require.NotNil(t, updated.CompletedBy)
			assert.Equal(t, "staff@example.co.jp", *updated.CompletedBy)

			// A second reporter never overwrites the stamp
			other := supportActor("second@example.co.jp")
			reverted, err := flow.UpdateTask(ctx, "A000001", &dto.UpdateTaskRequest{
				Status:       updated.Status,
				ReportStatus: string(models.ReportStatusUnreported),
				Log:          updated.Log,
			}, other, testMetadata())
			require.NoError(t, err)

			restamped, err := flow.UpdateTask(ctx, "A000001", &dto.UpdateTaskRequest{
				Status:       reverted.Status,
				ReportStatus: string(models.ReportStatusReported),
				Log:          reverted.Log,
			}, other, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, "staff@example.co.jp", *restamped.CompletedBy)
			assert.Equal(t, updated.CompletedAt.UTC(), restamped.CompletedAt.UTC())
		})

		t.Run("InvalidStatusRejected", func(t *testing.T) {
			_, err := flow.UpdateTask(ctx, "A000001", &dto.UpdateTaskRequest{
				Status:       "done",
				ReportStatus: string(models.ReportStatusReported),
			}, support, testMetadata())
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrInvalidStatus)
		})

		t.Run("ClientCannotUpdate", func(t *testing.T) {
			_, err := flow.UpdateTask(ctx, "A000001", &dto.UpdateTaskRequest{
				Status:       string(models.TaskStatusInProgress),
				ReportStatus: string(models.ReportStatusUnreported),
			}, clientActor("requester@example.com"), testMetadata())
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrSupportRoleRequired)
		})

		t.Run("UpdateMissingTask", func(t *testing.T) {
			_, err := flow.UpdateTask(ctx, "A999999", &dto.UpdateTaskRequest{
				Status:       string(models.TaskStatusInProgress),
				ReportStatus: string(models.ReportStatusUnreported),
			}, support, testMetadata())
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrTaskNotFound)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestExportTasks(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTaskFlow(testDB)
		ctx := testingutil.CreateTestContext()
		support := supportActor("staff@example.co.jp")

		_, err := flow.SubmitTasks(ctx, &dto.SubmitTasksRequest{
			RequesterName: "Hanako Sato",
			Targets: []dto.UnlockTarget{
				{EmployeeName: "Taro Yamada", EmployeeID: "EMP-1"},
				{EmployeeName: "Jiro Suzuki", EmployeeID: "EMP-2"},
			},
		}, clientActor("requester@example.com"), testMetadata())
		require.NoError(t, err)

		payload, filename, err := flow.ExportTasks(ctx, &dto.ListTasksRequest{}, support, testMetadata())
		require.NoError(t, err)
		assert.NotEmpty(t, payload)
		assert.Contains(t, filename, "unlock-tasks-")
		assert.Contains(t, filename, ".xlsx")
		// xlsx payloads are zip archives
		assert.Equal(t, []byte{'P', 'K'}, payload[:2])

		t.Run("ClientCannotExport", func(t *testing.T) {
			_, _, err := flow.ExportTasks(ctx, &dto.ListTasksRequest{}, clientActor("requester@example.com"), testMetadata())
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrSupportRoleRequired)
		})

		return nil
	})
	require.NoError(t, err)
}
