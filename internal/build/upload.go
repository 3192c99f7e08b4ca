package build

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/project"
	"git.home.luguber.info/inful/sitedeploy/internal/storage"
)

type uploader struct {
	store       storage.ArtifactStore
	root        string
	projectID   string
	concurrency int
	recorder    metrics.Recorder
	logger      *slog.Logger
}

// upload stores every file, recording results in report. A failure never
// cancels the remaining uploads.
func (u *uploader) upload(ctx context.Context, files []outputFile, report *Report) {
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(max(u.concurrency, 1))

	for _, f := range files {
		g.Go(func() error {
			key, n, err := u.put(ctx, f)
			u.recorder.IncUpload(metrics.ResultFor(err), n)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				u.logger.Warn("Artifact upload failed", logfields.Key(key), logfields.Error(err))
				report.Failed = append(report.Failed, UploadFailure{Key: key, Err: err})
				return nil
			}
			report.Uploaded = append(report.Uploaded, key)
			report.Bytes += n
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(report.Uploaded)
	slices.SortFunc(report.Failed, func(a, b UploadFailure) int { return strings.Compare(a.Key, b.Key) })
}

func (u *uploader) put(ctx context.Context, f outputFile) (string, int64, error) {
	key, err := project.ArtifactKey(u.root, project.ID(u.projectID), f.rel)
	if err != nil {
		return f.rel, 0, err
	}
	if err := ctx.Err(); err != nil {
		return key, 0, err
	}

	file, err := os.Open(f.path)
	if err != nil {
		return key, 0, err
	}
	defer func() { _ = file.Close() }()

	ct := storage.ContentTypeFor(f.rel)
	err = u.store.Put(ctx, &storage.Artifact{Key: key, Body: file, Size: f.size, ContentType: ct})
	if err != nil {
		return key, 0, err
	}
	u.logger.Debug("Uploaded artifact", logfields.Key(key), logfields.ContentType(ct), logfields.Bytes(f.size))
	return key, f.size, nil
}
