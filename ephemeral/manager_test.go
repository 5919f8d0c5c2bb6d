package ephemeral

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trussworks/ephemeral-env/errors"
	billyfs "github.com/trussworks/ephemeral-env/fs/billy"
	"github.com/trussworks/ephemeral-env/lock"
)

func newTestManager(t *testing.T, cloud *fakeCloud, template string, locker lock.Locker) (*Manager, *fakeRunner) {
	t.Helper()

	files := billyfs.NewInMemoryFS()
	if template != "" {
		require.NoError(t, files.WriteFile(ParamsTemplateFile, []byte(template), 0o644))
	}
	runner := &fakeRunner{}
	p := newTestProvisioner(cloud, WithLauncher(files, runner, "/deploy"))
	return NewManager(p, locker), runner
}

func TestManagerCreate(t *testing.T) {
	cloud := newFakeCloud()
	m, runner := newTestManager(t, cloud, paramsTemplate, lock.NewMemoryLocker(0))

	tg, err := m.Create(context.Background(), testIdentity("pr-42"), testShared())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"CreateTargetGroup pr-42-tg",
		"CreateRule 10",
		"ChangeAliasRecords UPSERT 1",
	}, cloud.callLog())
	assert.Equal(t, 1, cloud.lbLookups)
	assert.Len(t, cloud.targetGroups, 1)
	assert.Contains(t, cloud.records, "my-pr-42.example.com")

	require.Len(t, runner.args, 1)
	assert.Contains(t, runner.args[0], "targetGroupArn="+tg.ARN+",containerName=app,containerPort=4000")
}

func TestManagerCreate_RenderFailureMakesNoCloudCalls(t *testing.T) {
	cloud := newFakeCloud()
	m, runner := newTestManager(t, cloud, "version: 1\n", nil)

	_, err := m.Create(context.Background(), testIdentity("pr-42"), testShared())
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))

	var tmplErr *TemplateError
	assert.ErrorAs(t, err, &tmplErr)
	assert.Empty(t, cloud.callLog())
	assert.Empty(t, runner.args)
}

func TestManagerCreate_LockHeld(t *testing.T) {
	cloud := newFakeCloud()
	locker := lock.NewMemoryLocker(0)
	m, _ := newTestManager(t, cloud, paramsTemplate, locker)

	lease, err := locker.Acquire(context.Background(), EnvLockKey("pr-42"))
	require.NoError(t, err)

	_, err = m.Create(context.Background(), testIdentity("pr-42"), testShared())
	assert.Equal(t, errors.CodeConflict, errors.CodeOf(err))
	assert.Empty(t, cloud.callLog())

	require.NoError(t, lease.Release(context.Background()))
	_, err = m.Create(context.Background(), testIdentity("pr-42"), testShared())
	assert.NoError(t, err)
}

func TestManagerLockKeys(t *testing.T) {
	cloud := newFakeCloud()
	locker := lock.NewMemoryLocker(0)
	m, _ := newTestManager(t, cloud, paramsTemplate, locker)
	ctx := context.Background()

	sweep, err := locker.Acquire(ctx, SweepLockKey)
	require.NoError(t, err)
	defer func() { _ = sweep.Release(ctx) }()

	// an environment named like the sweep key does not contend with it
	_, err = m.Create(ctx, testIdentity("sweep"), testShared())
	require.NoError(t, err)

	_, err = m.Destroy(ctx, testShared(), resolveTestIdentity)
	assert.Equal(t, errors.CodeConflict, errors.CodeOf(err))
	assert.Len(t, cloud.targetGroups, 1)
}

func TestManagerCreate_ReleasesLockOnFailure(t *testing.T) {
	cloud := newFakeCloud()
	cloud.lb = nil
	locker := lock.NewMemoryLocker(0)
	m, _ := newTestManager(t, cloud, paramsTemplate, locker)

	_, err := m.Create(context.Background(), testIdentity("pr-42"), testShared())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	lease, err := locker.Acquire(context.Background(), EnvLockKey("pr-42"))
	require.NoError(t, err)
	assert.NoError(t, lease.Release(context.Background()))
}

func TestManagerDestroy(t *testing.T) {
	cloud := newFakeCloud()
	m, runner := newTestManager(t, cloud, paramsTemplate, lock.NewMemoryLocker(0))
	ctx := context.Background()

	_, err := m.Create(ctx, testIdentity("pr-42"), testShared())
	require.NoError(t, err)
	cloud.addService("pr-42", envTags("pr-42"))
	require.Len(t, runner.args, 1)

	report, err := m.Destroy(ctx, testShared(), resolveTestIdentity)
	require.NoError(t, err)
	assert.Len(t, report.Services, 1)
	assert.Equal(t, []string{"pr-42"}, report.DNSChanges)
	assert.Len(t, report.Rules, 1)
	assert.Len(t, report.TargetGroups, 1)

	assert.Empty(t, cloud.targetGroups)
	assert.Empty(t, cloud.rules)
	assert.Empty(t, cloud.records)
	assert.Empty(t, cloud.services)
}
