package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/container"
	"github.com/slipway-io/slipway/pipeline"
)

// pushAction pushes the immutable tag first, then repoints the floating
// tag. The order is deliberate: if the floating push fails the run fails,
// but the immutable tag already sits in the registry and stays usable.
func (s *Set) pushAction(spec config.StageSpec) pipeline.ActionFunc {
	return func(ctx context.Context, rc *pipeline.RunContext) (string, error) {
		b, err := s.builder(rc)
		if err != nil {
			return "", pipeline.NewError(pipeline.KindConfiguration, spec.Name, err)
		}

		cred := rc.Credential()
		if cred == nil {
			return "", pipeline.NewError(pipeline.KindConfiguration, spec.Name,
				errors.New("push stage resolved no registry credential"))
		}
		reg := cred.Registry()

		img := rc.ImageRef()
		if img.IsZero() {
			return "", errors.New("no image reference resolved for this run")
		}

		if s.RegistryURL != "" {
			if err := container.CheckRegistryReachable(ctx, s.RegistryURL); err != nil {
				rc.AddWarning(err.Error())
			}
		}

		registry := img.Domain()
		if err := b.Login(ctx, registry, reg.Username, reg.Password); err != nil {
			return "", err
		}
		defer func() {
			if err := b.Logout(ctx, registry); err != nil {
				rc.AddWarning(err.Error())
			}
		}()

		s.Log.Info("pushing image", map[string]any{
			"builder": b.Name(), "tag": img.String(), "registry": registry,
		})
		out, err := b.Push(ctx, img.String())
		if err != nil {
			return out, err
		}

		floating := img.Floating()
		tagOut, err := b.Tag(ctx, img.String(), floating.String())
		out += tagOut
		if err != nil {
			return out, fmt.Errorf("repointing %s (immutable tag %s was pushed): %w",
				floating.String(), img.String(), err)
		}
		floatOut, err := b.Push(ctx, floating.String())
		out += floatOut
		if err != nil {
			return out, fmt.Errorf("pushing %s (immutable tag %s was pushed): %w",
				floating.String(), img.String(), err)
		}

		s.Log.Info("image pushed", map[string]any{
			"tag": img.String(), "floating": floating.String(),
		})
		return out, nil
	}
}
