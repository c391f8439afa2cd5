package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/rulesync/internal/config"
	"github.com/John-Robertt/rulesync/internal/fetch"
	"github.com/John-Robertt/rulesync/internal/manifest"
	"github.com/John-Robertt/rulesync/internal/metrics"
	"github.com/John-Robertt/rulesync/internal/model"
	"github.com/John-Robertt/rulesync/internal/render"
	"github.com/John-Robertt/rulesync/internal/rules"
	"github.com/John-Robertt/rulesync/internal/store"
)

// Store is the file collaborator of a run.
type Store interface {
	ListSources(dir string) ([]store.Source, error)
	ReadText(path string) (string, error)
	WriteIfChanged(path, content string) (bool, error)
	ListGenerated(dir, ext string) ([]string, error)
	Remove(path string) error
}

type SyncError struct {
	AppError model.AppError
	Cause    error
}

func (e *SyncError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *SyncError) Unwrap() error { return e.Cause }

// Stats summarizes one run.
type Stats struct {
	Sources        int
	Written        int
	Unchanged      int
	Skipped        int // target outputs with nothing to emit or a failure
	Removed        int
	ExternalOK     int
	ExternalFailed int
}

func (s Stats) String() string {
	return fmt.Sprintf("sources=%d written=%d unchanged=%d skipped=%d removed=%d external_ok=%d external_failed=%d",
		s.Sources, s.Written, s.Unchanged, s.Skipped, s.Removed, s.ExternalOK, s.ExternalFailed)
}

type Syncer struct {
	cfg     config.Config
	store   Store
	fetcher fetch.Fetcher
	metrics *metrics.Collector
}

func New(cfg config.Config, st Store, f fetch.Fetcher, m *metrics.Collector) *Syncer {
	if m == nil {
		m = metrics.NewCollector()
	}
	return &Syncer{cfg: cfg, store: st, fetcher: f, metrics: m}
}

type output struct {
	dir string
	ext string
}

func (s *Syncer) output(t render.Target) output {
	switch t {
	case render.TargetQuanx:
		return output{dir: s.cfg.Path(s.cfg.QuanxDir), ext: ".list"}
	case render.TargetClash:
		return output{dir: s.cfg.Path(s.cfg.ClashDir), ext: ".yaml"}
	default:
		return output{dir: s.cfg.Path(s.cfg.SingboxDir), ext: ".json"}
	}
}

// Run converts every source to all targets, refreshes external lists and
// removes stale outputs. Only a failed source listing or an empty source tree
// is returned as an error; per-file failures are logged and counted.
func (s *Syncer) Run(ctx context.Context) (Stats, error) {
	var st Stats
	s.metrics.SetRunSuccess(false)

	srcDir := s.cfg.Path(s.cfg.SourceDir)
	sources, err := s.store.ListSources(srcDir)
	if err != nil {
		return st, s.fail(&SyncError{
			AppError: model.AppError{
				Code:    "SOURCE_LIST_FAILED",
				Message: "扫描源规则目录失败",
				Stage:   "list_sources",
				Path:    srcDir,
			},
			Cause: err,
		})
	}
	if len(sources) == 0 {
		return st, s.fail(&SyncError{
			AppError: model.AppError{
				Code:    "NO_SOURCES",
				Message: "源规则目录中没有 .list 文件",
				Stage:   "list_sources",
				Path:    srcDir,
			},
		})
	}

	keep := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if _, dup := keep[src.Stem]; dup {
			log.Printf("sync source=%s status=skipped reason=duplicate_stem", src.Path)
			continue
		}
		keep[src.Stem] = struct{}{}
		st.Sources++
		s.syncSource(src, &st)
	}

	providers, providersKnown := s.loadProviders(ctx)
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if _, clash := keep[p.Name]; clash && s.sameDir(s.cfg.ExternalDir, s.cfg.SingboxDir) {
			log.Printf("external provider=%s status=skipped reason=name_shadows_source", p.Name)
			continue
		}
		s.syncExternal(ctx, p, &st)
	}

	protected := manifest.Names(providers)
	for _, t := range render.Targets {
		if t == render.TargetSingbox && !providersKnown {
			log.Printf("cleanup target=%s status=skipped reason=manifest_unavailable", t)
			continue
		}
		extra := map[string]struct{}(nil)
		if t == render.TargetSingbox {
			extra = protected
		}
		s.cleanup(t, keep, extra, &st)
	}

	s.metrics.SetRunSuccess(true)
	log.Printf("sync done %s", st)
	return st, nil
}

func (s *Syncer) syncSource(src store.Source, st *Stats) {
	text, err := s.store.ReadText(src.Path)
	if err != nil {
		log.Printf("sync source=%s status=read_failed err=%v", src.Path, err)
		s.metrics.IncAppError("read_source", "READ_FAILED")
		st.Skipped += len(render.Targets)
		return
	}
	s.metrics.IncSourceRead()
	lines := rules.ParseLines(text)

	for _, t := range render.Targets {
		// The policy label is the file stem.
		out, err := render.Render(t, lines, src.Stem)
		if err != nil {
			st.Skipped++
			if errors.Is(err, render.ErrNothingToEmit) {
				log.Printf("sync source=%s target=%s status=empty", src.Stem, t)
				continue
			}
			s.logAppError(err)
			log.Printf("sync source=%s target=%s status=render_failed err=%v", src.Stem, t, err)
			continue
		}
		o := s.output(t)
		s.write(t, filepath.Join(o.dir, src.Stem+o.ext), out, st)
	}
}

func (s *Syncer) write(t render.Target, path, content string, st *Stats) bool {
	wrote, err := s.store.WriteIfChanged(path, content)
	if err != nil {
		st.Skipped++
		s.logAppError(err)
		log.Printf("sync path=%s target=%s status=write_failed err=%v", path, t, err)
		return false
	}
	if wrote {
		st.Written++
		s.metrics.IncWritten(string(t))
		log.Printf("sync path=%s target=%s status=written", path, t)
	} else {
		st.Unchanged++
		s.metrics.IncUnchanged(string(t))
	}
	return true
}

// loadProviders reads the manifest. The second result is false when a
// manifest is configured but could not be read or parsed.
func (s *Syncer) loadProviders(ctx context.Context) ([]model.Provider, bool) {
	if s.cfg.Manifest == "" {
		return nil, true
	}
	if len(s.cfg.SelfURLPrefixes) == 0 {
		log.Printf("external manifest=%s warn=self_url_prefixes_empty providers hosted by this repository will be fetched", s.cfg.Manifest)
	}

	var (
		text string
		err  error
		src  = s.cfg.Manifest
	)
	if isHTTPURL(src) {
		if s.fetcher == nil {
			log.Printf("external manifest=%s status=skipped reason=no_fetcher", src)
			return nil, false
		}
		text, err = s.fetcher.FetchText(ctx, fetch.KindManifest, src)
	} else {
		src = s.cfg.Path(src)
		text, err = s.store.ReadText(src)
	}
	if err != nil {
		s.logAppError(err)
		log.Printf("external manifest=%s status=read_failed err=%v", src, err)
		return nil, false
	}

	providers, err := manifest.Parse(src, text, s.cfg.SelfURLPrefixes)
	if err != nil {
		s.logAppError(err)
		log.Printf("external manifest=%s status=parse_failed err=%v", src, err)
		return nil, false
	}
	return providers, true
}

func (s *Syncer) syncExternal(ctx context.Context, p model.Provider, st *Stats) {
	if s.fetcher == nil {
		return
	}
	text, err := s.fetcher.FetchText(ctx, fetch.KindRuleList, p.URL)
	if err != nil {
		st.ExternalFailed++
		s.metrics.IncExternalFailure(p.Name)
		s.logAppError(err)
		log.Printf("external provider=%s url=%s err=%v", p.Name, p.URL, err)
		return
	}

	out, err := render.RenderExternal(p.Behavior, text)
	if err != nil {
		st.Skipped++
		if errors.Is(err, render.ErrNothingToEmit) {
			log.Printf("external provider=%s behavior=%s status=empty", p.Name, p.Behavior)
			return
		}
		s.logAppError(err)
		log.Printf("external provider=%s status=render_failed err=%v", p.Name, err)
		return
	}

	path := filepath.Join(s.cfg.Path(s.cfg.ExternalDir), p.Name+".json")
	if s.write(render.TargetSingbox, path, out, st) {
		st.ExternalOK++
	}
}

func (s *Syncer) cleanup(t render.Target, keep, extra map[string]struct{}, st *Stats) {
	o := s.output(t)
	files, err := s.store.ListGenerated(o.dir, o.ext)
	if err != nil {
		log.Printf("cleanup target=%s dir=%s status=list_failed err=%v", t, o.dir, err)
		return
	}
	for _, f := range files {
		stem := store.Stem(f)
		if _, ok := keep[stem]; ok {
			continue
		}
		if _, ok := extra[stem]; ok {
			continue
		}
		if err := s.store.Remove(f); err != nil {
			s.logAppError(err)
			log.Printf("cleanup path=%s target=%s status=remove_failed err=%v", f, t, err)
			continue
		}
		st.Removed++
		s.metrics.IncRemoved(string(t))
		log.Printf("cleanup path=%s target=%s status=removed", f, t)
	}
}

func (s *Syncer) sameDir(a, b string) bool {
	return filepath.Clean(s.cfg.Path(a)) == filepath.Clean(s.cfg.Path(b))
}

func (s *Syncer) fail(err *SyncError) error {
	s.metrics.IncAppError(err.AppError.Stage, err.AppError.Code)
	return err
}

func (s *Syncer) logAppError(err error) {
	if ae, ok := appErrorOf(err); ok {
		s.metrics.IncAppError(ae.Stage, ae.Code)
		return
	}
	s.metrics.IncAppError("", "")
}

func appErrorOf(err error) (model.AppError, bool) {
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return fe.AppError, true
	}
	var me *manifest.ParseError
	if errors.As(err, &me) {
		return me.AppError, true
	}
	var re *render.RenderError
	if errors.As(err, &re) {
		return re.AppError, true
	}
	var we *store.WriteError
	if errors.As(err, &we) {
		return we.AppError, true
	}
	return model.AppError{}, false
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
