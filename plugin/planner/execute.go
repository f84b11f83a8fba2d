package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
	"github.com/reglet-dev/reglet-toolchain/plugin/repository"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// partialSuffix marks files that are still being downloaded or verified.
const partialSuffix = ".partial"

// ExecutionContext carries the collaborators a task needs to run.
type ExecutionContext struct {
	Installed  *entities.InstalledRepository
	Downloader ports.Downloader
	Store      *repository.FSArtifactStore

	HashValidator     ports.HashValidator
	SignatureVerifier ports.SignatureVerifier
	// RequireSignature rejects releases without a verifiable signature.
	RequireSignature bool

	Logger *slog.Logger
}

func (ec *ExecutionContext) logger() *slog.Logger {
	if ec.Logger == nil {
		return slog.Default()
	}
	return ec.Logger
}

// Execute performs the task and updates ec.Installed.
// On failure the installed repository is left untouched.
func (t Task) Execute(ctx context.Context, ec *ExecutionContext) error {
	if ec == nil || ec.Installed == nil {
		return errors.New("execution context has no installed repository")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch t.kind {
	case KindKeep:
		ec.logger().Debug("nothing to do", t.logAttrs()...)
		return nil
	case KindRemove:
		return t.remove(ec)
	case KindInstall, KindUpgrade, KindDowngrade, KindReinstall:
		return t.install(ctx, ec)
	default:
		return fmt.Errorf("unknown task kind %s", t.kind)
	}
}

func (t Task) install(ctx context.Context, ec *ExecutionContext) error {
	if ec.Downloader == nil || ec.Store == nil {
		return fmt.Errorf("%s %s: downloader and artifact store are required", t.subject, t.Name())
	}
	if t.subject == values.KindTool && !ec.Installed.HasPlugin(t.plugin) {
		return fmt.Errorf("tool %s: plugin %s is not installed", t.tool, t.plugin)
	}
	v := t.desired

	artifactPath, err := ec.Store.ArtifactPath(v)
	if err != nil {
		return err
	}
	signaturePath, err := ec.Store.SignaturePath(v)
	if err != nil {
		return err
	}

	stagedArtifact := artifactPath + partialSuffix
	stagedSignature := signaturePath + partialSuffix
	dir := filepath.Dir(artifactPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	cleanup := func() {
		_ = os.Remove(stagedArtifact)
		_ = os.Remove(stagedSignature)
		// Only succeeds when nothing else lives there.
		_ = os.Remove(dir)
	}

	ec.logger().Info("downloading", append(t.logAttrs(), "url", v.URL())...)
	if err := ec.Downloader.DownloadFile(ctx, v.URL(), stagedArtifact); err != nil {
		cleanup()
		return fmt.Errorf("download %s %s: %w", t.subject, v, err)
	}
	if info, err := os.Stat(stagedArtifact); err == nil {
		ec.logger().Debug("downloaded", append(t.logAttrs(), "size", humanize.Bytes(uint64(info.Size())))...)
	}

	if err := t.verify(ctx, ec, stagedArtifact, stagedSignature); err != nil {
		cleanup()
		return err
	}

	if err := os.Rename(stagedArtifact, artifactPath); err != nil {
		cleanup()
		return fmt.Errorf("install %s %s: %w", t.subject, v, err)
	}
	if v.IsSigned() {
		if _, err := os.Stat(stagedSignature); err == nil {
			_ = os.Rename(stagedSignature, signaturePath)
		}
	}

	if err := t.record(ec); err != nil {
		return err
	}

	if t.installed != nil && t.installed.Version() != v.Version() {
		if err := ec.Store.Remove(t.installed); err != nil {
			ec.logger().Warn("failed to remove replaced artifact", append(t.logAttrs(), "error", err)...)
		}
	}

	ec.logger().Info("installed", t.logAttrs()...)
	return nil
}

func (t Task) verify(ctx context.Context, ec *ExecutionContext, artifactPath, signaturePath string) error {
	v := t.desired

	if ec.HashValidator != nil {
		if err := ec.HashValidator.ValidateHash(artifactPath, v.Digest()); err != nil {
			return err
		}
	}

	if !v.IsSigned() {
		if ec.RequireSignature {
			return fmt.Errorf("%s %s: %w", t.subject, v, entities.ErrUnsignedArtifact)
		}
		return nil
	}
	// A published signature is never skipped.
	if ec.SignatureVerifier == nil {
		return fmt.Errorf("%s %s: %w", t.subject, v, &entities.UntrustedSignatureError{
			Path: v.SignatureURL(),
			Err:  entities.ErrNoSignatureVerifier,
		})
	}

	if err := ec.Downloader.DownloadFile(ctx, v.SignatureURL(), signaturePath); err != nil {
		return fmt.Errorf("download signature of %s %s: %w", t.subject, v, err)
	}
	result, err := ec.SignatureVerifier.Verify(ctx, artifactPath, signaturePath)
	if err != nil {
		return fmt.Errorf("%s %s: %w", t.subject, v, err)
	}
	ec.logger().Info("signature verified", append(t.logAttrs(), "fingerprint", result.Fingerprint)...)
	return nil
}

func (t Task) record(ec *ExecutionContext) error {
	if t.subject == values.KindTool {
		return ec.Installed.AddTool(t.plugin, t.desired)
	}
	ec.Installed.AddPlugin(t.desired)
	return nil
}

func (t Task) remove(ec *ExecutionContext) error {
	if ec.Store != nil && t.installed != nil {
		if err := ec.Store.Remove(t.installed); err != nil {
			return err
		}
	}

	if t.subject == values.KindTool {
		ec.Installed.RemoveTool(t.plugin, t.tool)
	} else {
		ec.Installed.RemovePlugin(t.plugin)
	}
	ec.logger().Info("removed", t.logAttrs()...)
	return nil
}

func (t Task) logAttrs() []any {
	attrs := []any{"task", t.kind.String(), "plugin", t.plugin}
	if t.subject == values.KindTool {
		attrs = append(attrs, "tool", t.tool)
	}
	if t.desired != nil {
		attrs = append(attrs, "version", t.desired.Version())
	} else if t.installed != nil {
		attrs = append(attrs, "version", t.installed.Version())
	}
	return attrs
}
