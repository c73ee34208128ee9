package tfs

import (
	"context"
	"fmt"
	"net/url"

	"github.com/exova-dev/bmx-tfs/internal/model"
	"github.com/exova-dev/bmx-tfs/internal/provider"
)

// ResolveBuild looks up a build by team project, build definition, and
// optional build number. When buildNumber is empty, the most recent
// matching build wins. Unless includeUnsuccessful is set, only builds
// that succeeded are considered. A build that cannot be found is a
// NotFoundError; the caller decides how fatal that is.
func (a *Adapter) ResolveBuild(
	ctx context.Context,
	teamProject string,
	buildDefinition string,
	buildNumber string,
	includeUnsuccessful bool,
) (*model.Build, error) {
	sess, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	collection := a.collectionSegment(model.CategoryFilter{})

	query := url.Values{}
	query.Set("definition", buildDefinition)
	query.Set("$top", "1")
	if buildNumber != "" {
		query.Set("buildNumber", buildNumber)
	}
	if !includeUnsuccessful {
		query.Set("resultFilter", "succeeded")
	}

	path := fmt.Sprintf(
		"/%s/%s/_apis/build/builds?%s&%s",
		collection, url.PathEscape(teamProject), query.Encode(), apiVersion,
	)

	var list BuildList
	if err := sess.client.Get(ctx, path, &list); err != nil {
		return nil, fmt.Errorf(
			"resolving build %q of definition %q: %w",
			buildNumber, buildDefinition, err,
		)
	}

	if len(list.Value) == 0 {
		key := buildDefinition
		if buildNumber != "" {
			key = buildDefinition + "/" + buildNumber
		}
		return nil, &provider.NotFoundError{Kind: "build", Key: key}
	}

	record := list.Value[0]
	return &model.Build{
		Number:       record.BuildNumber,
		DropLocation: record.DropLocation,
		Succeeded:    record.Result == "succeeded",
	}, nil
}
