package model_selection

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
	"github.com/YuminosukeSato/searchcv/pkg/log"
)

// ResultsExt is the extension of files written by FileStore.
const ResultsExt = ".results"

// recordFileVersion is bumped whenever recordFile changes incompatibly.
const recordFileVersion = 1

// Store persists aggregate records.
type Store interface {
	// Save writes record to destination and returns the path written. An
	// empty destination derives the name from the record.
	Save(record *AggregateRecord, destination string) (string, error)
	// Load reads a record previously written by Save. A missing destination
	// yields an error matching fs.ErrNotExist.
	Load(destination string) (*AggregateRecord, error)
}

// DefaultFilename joins the entry type names with "__" and appends
// ResultsExt, e.g. "Ridge__DecisionTreeClassifier.results".
func DefaultFilename(record *AggregateRecord) string {
	parts := make([]string, len(record.Entries))
	for i, e := range record.Entries {
		parts[i] = e.TypeName
	}
	return strings.Join(parts, "__") + ResultsExt
}

// FileStore writes records as gob files. Writes are atomic and serialized
// across processes with an advisory lock next to the file.
type FileStore struct {
	// Dir resolves relative destinations. Empty means the working directory.
	Dir    string
	Logger log.Logger
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir, Logger: log.Nop()}
}

func (s *FileStore) path(destination string) string {
	if filepath.IsAbs(destination) || s.Dir == "" {
		return destination
	}
	return filepath.Join(s.Dir, destination)
}

func (s *FileStore) logger() log.Logger {
	if s.Logger == nil {
		return log.Nop()
	}
	return s.Logger
}

// recordFile is the on-disk form of an AggregateRecord.
type recordFile struct {
	Version   int
	RunID     string
	Scoring   string
	CVFolds   int
	Kind      Kind
	CreatedAt time.Time
	Entries   []entryFile
}

type entryFile struct {
	Name               string
	TypeName           string
	BestParams         Params
	Estimator          *model.Snapshot
	BestScore          float64
	CVResults          CVResults
	FeatureImportances []float64
	GridParams         []Grid
	ExtraOptions       map[string]interface{}
	Scoring            string
	BestScores         *EvaluationOutcome
}

// Save encodes the whole record and writes it atomically. Nothing is
// written when any value cannot be encoded.
func (s *FileStore) Save(record *AggregateRecord, destination string) (string, error) {
	if record == nil {
		return "", errors.NewValueError("FileStore.Save", "record is nil")
	}
	if destination == "" {
		destination = DefaultFilename(record)
	}
	path := s.path(destination)

	file, err := encodeRecord(record)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(file); err != nil {
		return "", errors.WrapSerializationError(path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "create %s", dir)
		}
	}
	// Serializes concurrent writers; the lock file is left in place.
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", errors.Wrapf(err, "lock %s", path)
	}
	defer func() { _ = lock.Unlock() }()

	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	s.logger().Info("Results saved",
		log.OperationKey, log.OperationSave,
		log.StorePathKey, path,
		log.StoreEntriesKey, len(record.Entries),
	)
	return path, nil
}

// Load reads a record. Best estimators whose type is not registered in
// this process load as nil; everything else is restored.
func (s *FileStore) Load(destination string) (*AggregateRecord, error) {
	path := s.path(destination)
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "load results")
	}

	// Save replaces the file with a rename, so a read never sees a partial
	// record and needs no lock. Results in read-only directories stay loadable.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load results")
	}

	var file recordFile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&file); err != nil {
		return nil, errors.WrapSerializationError(path, err)
	}
	if file.Version != recordFileVersion {
		return nil, errors.WrapSerializationError(path,
			errors.Newf("unsupported results version %d", file.Version))
	}

	record := &AggregateRecord{
		RunID:     file.RunID,
		Scoring:   file.Scoring,
		CVFolds:   file.CVFolds,
		Kind:      file.Kind,
		CreatedAt: file.CreatedAt,
		Entries:   make([]*Entry, len(file.Entries)),
	}
	for i, ef := range file.Entries {
		e := &Entry{
			Name:               ef.Name,
			TypeName:           ef.TypeName,
			BestParams:         ef.BestParams,
			BestScore:          ef.BestScore,
			CVResults:          ef.CVResults,
			FeatureImportances: ef.FeatureImportances,
			GridParams:         ef.GridParams,
			ExtraOptions:       ef.ExtraOptions,
			Scoring:            ef.Scoring,
			BestScores:         ef.BestScores,
		}
		if ef.Estimator != nil {
			m, err := ef.Estimator.Restore()
			if err != nil {
				s.logger().Warn("Best estimator not restored",
					log.EntryKey, ef.Name,
					log.ModelNameKey, ef.Estimator.Type,
					"error", err.Error(),
				)
			} else {
				e.BestEstimator = m
			}
		}
		record.Entries[i] = e
	}
	s.logger().Info("Results loaded",
		log.OperationKey, log.OperationLoad,
		log.StorePathKey, path,
		log.StoreEntriesKey, len(record.Entries),
	)
	return record, nil
}

func encodeRecord(record *AggregateRecord) (*recordFile, error) {
	file := &recordFile{
		Version:   recordFileVersion,
		RunID:     record.RunID,
		Scoring:   record.Scoring,
		CVFolds:   record.CVFolds,
		Kind:      record.Kind,
		CreatedAt: record.CreatedAt,
		Entries:   make([]entryFile, len(record.Entries)),
	}
	for i, e := range record.Entries {
		ef := entryFile{
			Name:               e.Name,
			TypeName:           e.TypeName,
			BestParams:         e.BestParams,
			BestScore:          e.BestScore,
			CVResults:          e.CVResults,
			FeatureImportances: e.FeatureImportances,
			GridParams:         e.GridParams,
			ExtraOptions:       e.ExtraOptions,
			Scoring:            e.Scoring,
			BestScores:         e.BestScores,
		}
		if e.BestEstimator != nil {
			snap, err := model.TakeSnapshot(e.BestEstimator)
			if err != nil {
				return nil, errors.WithStack(&errors.SerializationError{
					Entry: e.Name,
					Key:   "best_estimator",
					Type:  model.TypeName(e.BestEstimator),
					Err:   err,
				})
			}
			ef.Estimator = snap
		}
		if err := checkEncodable(e.Name, &ef); err != nil {
			return nil, err
		}
		file.Entries[i] = ef
	}
	return file, nil
}

// checkEncodable walks every dynamically typed value of an entry.
func checkEncodable(entry string, ef *entryFile) error {
	if err := checkMap(entry, "best_params", ef.BestParams); err != nil {
		return err
	}
	for i, p := range ef.CVResults.Params {
		if err := checkMap(entry, fmt.Sprintf("cv_results.params[%d]", i), p); err != nil {
			return err
		}
	}
	for i, g := range ef.GridParams {
		for k, vs := range g {
			for _, v := range vs {
				if err := checkValue(entry, fmt.Sprintf("grid_params[%d].%s", i, k), v); err != nil {
					return err
				}
			}
		}
	}
	if err := checkMap(entry, "extra_options", ef.ExtraOptions); err != nil {
		return err
	}
	if ef.Estimator != nil {
		return checkMap(entry, "best_estimator.params", ef.Estimator.Params)
	}
	return nil
}

func checkMap(entry, prefix string, m map[string]interface{}) error {
	for k, v := range m {
		if err := checkValue(entry, prefix+"."+k, v); err != nil {
			return err
		}
	}
	return nil
}

// checkValue accepts the values gob can carry inside an interface without
// registration: nil, scalars, slices of scalars, and []interface{} or
// map[string]interface{} nesting those.
func checkValue(entry, key string, v interface{}) error {
	switch x := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, complex64, complex128,
		[]byte, []bool, []string, []int, []int64, []float64:
		return nil
	case []interface{}:
		for i, item := range x {
			if err := checkValue(entry, fmt.Sprintf("%s[%d]", key, i), item); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		return checkMap(entry, key, x)
	default:
		return errors.NewSerializationError(entry, key, fmt.Sprintf("%T", v))
	}
}
