package ephemeral

import (
	"context"
	"log/slog"

	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/lock"
)

// Lock keys. Environment keys and the sweep key live in separate
// namespaces, so an environment named "sweep" cannot collide with it.
//
// The sweep does not take environment locks: a Create running while Destroy
// sweeps is not excluded, and its resources may be removed or left partial
// by the sweep. Creating the environment again reconciles what is missing.
const (
	SweepLockKey  = "sweep"
	envLockPrefix = "env/"
)

// EnvLockKey is the lock key held while the named environment is created.
func EnvLockKey(envName string) string {
	return envLockPrefix + envName
}

// Manager runs the full provisioning pipeline of one environment and the
// teardown sweep, each under a lock when a Locker is configured.
type Manager struct {
	p      *Provisioner
	locker lock.Locker
	logger *slog.Logger
}

// NewManager creates a Manager. locker may be nil to run without locking.
func NewManager(p *Provisioner, locker lock.Locker) *Manager {
	return &Manager{p: p, locker: locker, logger: p.logger}
}

// Create provisions the environment: rendered service parameters, target
// group and rule, DNS records and the running service. The first failing
// step aborts the pipeline.
func (m *Manager) Create(ctx context.Context, id EnvironmentIdentity, shared SharedClusterConfig) (TargetGroupHandle, error) {
	var tg TargetGroupHandle

	err := m.withLock(ctx, EnvLockKey(id.EnvName), func(ctx context.Context) error {
		// rendering is local, so a bad template fails before anything is created
		if _, err := m.p.RenderServiceLaunchConfig(shared); err != nil {
			return errors.WrapWithContext(err, errors.CodeInvalidConfig,
				"failed to render service parameters", map[string]interface{}{"env": id.EnvName})
		}

		var (
			lb  LoadBalancerInfo
			err error
		)
		tg, lb, err = m.p.ensureEnvironment(ctx, id, shared)
		if err != nil {
			return err
		}

		status, err := m.p.SyncDNS(ctx, id, shared, lb, DNSUpsert)
		if err != nil {
			return err
		}
		m.logger.InfoContext(ctx, "dns upserted", "env", id.EnvName, "status", status)

		if _, err := m.p.LaunchService(ctx, id, shared, tg); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return TargetGroupHandle{}, err
	}

	m.logger.InfoContext(ctx, "environment ready", "env", id.EnvName, "arn", tg.ARN)
	return tg, nil
}

// Destroy runs TeardownAll under the sweep lock.
func (m *Manager) Destroy(ctx context.Context, shared SharedClusterConfig, resolve IdentityResolver) (*TeardownReport, error) {
	var report *TeardownReport

	err := m.withLock(ctx, SweepLockKey, func(ctx context.Context) error {
		var err error
		report, err = m.p.TeardownAll(ctx, shared, resolve)
		return err
	})
	return report, err
}

func (m *Manager) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if m.locker == nil {
		return fn(ctx)
	}

	lease, err := m.locker.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			m.logger.WarnContext(ctx, "failed to release lock", "key", key, "error", err)
		}
	}()

	return fn(ctx)
}
