package stages

import (
	"context"
	"errors"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/container"
	"github.com/slipway-io/slipway/pipeline"
)

func (s *Set) buildAction(spec config.StageSpec) pipeline.ActionFunc {
	return func(ctx context.Context, rc *pipeline.RunContext) (string, error) {
		b, err := s.builder(rc)
		if err != nil {
			return "", pipeline.NewError(pipeline.KindConfiguration, spec.Name, err)
		}

		img := rc.ImageRef()
		if img.IsZero() {
			return "", errors.New("no image reference resolved for this run")
		}

		image := rc.Def.Image
		s.Log.Info("building image", map[string]any{
			"builder": b.Name(), "tag": img.String(), "context": image.Context,
		})

		result, err := b.Build(ctx, container.BuildOptions{
			ContextDir: image.Context,
			Dockerfile: image.Dockerfile,
			Tag:        img.String(),
			Platform:   image.Platform,
			NoCache:    image.NoCache,
			BuildArgs:  image.BuildArgs,
		})
		if err != nil {
			return "", err
		}

		s.Log.Info("image built", map[string]any{
			"tag": img.String(), "image_id": result.ImageID,
		})
		return result.Output, nil
	}
}
