// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

// Package checkpoints saves and restores the variables of a model to disk.
//
// A checkpoint is a pair of files in the checkpoint directory: a JSON file
// with the metadata of every variable (path within the model, shape,
// trainable) and a binary file with the concatenated tensor data, compressed
// with gzip. Files are first written to temporary names and renamed into
// place, so a crash never leaves a partially written checkpoint behind.
//
// Example:
//
//	checkpoint, err := checkpoints.Build(model).Dir(checkpointDir).Keep(3).Done()
//	...
//	err = checkpoint.Save()              // After (or during) training.
//	...
//	err = checkpoint.Load()              // Into a freshly constructed model.
//
// Variables are matched by their path in the model structure, as reported by
// nn.NamedVariables. Loading into a model whose layers are not yet built
// creates the variables directly from the stored shapes -- the layers find
// and validate them when they build on their first call.
package checkpoints

import (
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/sprout-ml/sprout/ml/nn"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// DirPermMode is the default directory creation permission (before umask) used.
var DirPermMode = os.FileMode(0770)

// Config for building a checkpoints.Handler. Create it with Build, and when
// finished configuring call Done.
type Config struct {
	model any
	dir   string
	keep  int
	err   error
}

// Build the configuration for a checkpoints.Handler for the given model. The
// model must be a pointer (usually to a struct or a layer), so its variables
// can be created when loading.
//
// Configure at least Dir before calling Done.
func Build(model any) *Config {
	return &Config{
		model: model,
		keep:  1,
	}
}

// Dir sets the directory where to save and load the checkpoints. It is
// created if it doesn't exist yet.
//
// It returns the Config, so calls can be cascaded.
func (c *Config) Dir(dir string) *Config {
	if c.err != nil {
		return c
	}
	fi, err := os.Stat(dir)
	switch {
	case err != nil && os.IsNotExist(err):
		if err = os.MkdirAll(dir, DirPermMode); err != nil {
			c.err = errors.Wrapf(err, "failed to create checkpoint directory %q", dir)
			return c
		}
	case err != nil:
		c.err = errors.Wrapf(err, "failed to stat checkpoint directory %q", dir)
		return c
	case !fi.IsDir():
		c.err = errors.Errorf("checkpoint path %q exists and is not a directory", dir)
		return c
	}
	c.dir = dir
	return c
}

// Keep configures the number of checkpoints to keep in the directory: older
// ones are deleted after each Save. If set to -1 it never erases older
// checkpoints. The default is 1.
//
// It returns the Config, so calls can be cascaded.
func (c *Config) Keep(n int) *Config {
	c.keep = n
	return c
}

// Done creates a Handler with the current configuration. It returns an error
// if the configuration is invalid or missing information.
func (c *Config) Done() (*Handler, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.dir == "" {
		return nil, errors.Errorf("directory for checkpoints not configured or empty, use Config.Dir")
	}
	h := &Handler{config: c}
	existing, err := h.ListCheckpoints()
	if err != nil {
		return nil, err
	}
	h.checkpointsCount = maxCheckpointCount(existing) + 1
	return h, nil
}

// Handler saves and loads the checkpoints of a model. Build one with
// Build(model).Dir(dir)...Done().
type Handler struct {
	config           *Config
	checkpointsCount int
}

// String implements fmt.Stringer.
func (h *Handler) String() string {
	return fmt.Sprintf("checkpoints.Handler(%q)", h.config.dir)
}

// Dir returns the directory the handler is configured to use.
func (h *Handler) Dir() string { return h.config.dir }

const (
	baseNamePrefix = "checkpoint-"

	// JsonNameSuffix for the metadata files returned by Handler.ListCheckpoints.
	JsonNameSuffix = ".json"

	// BinDataSuffix for the data files (holding the tensor values) returned by
	// Handler.ListCheckpoints.
	BinDataSuffix = ".bin"
)

// serializedData is how the metadata is read and written from storage.
type serializedData struct {
	// Variables of the model, in the order they are stored in the binary file.
	Variables []serializedVar

	// BinFormat describes the format used by the binary file. It is
	// informative; the binary file header is authoritative.
	BinFormat string
}

// serializedVar contains the metadata of one serialized variable.
type serializedVar struct {
	// Path of the variable within the model, per nn.NamedVariables.
	Path string

	// Name and Scope of the nn.Variable.
	Name, Scope string

	// Trainable marks whether the variable is updated by optimizers.
	Trainable bool

	// Dimensions of the shape.
	Dimensions []int

	// DType of the shape.
	DType dtypes.DType

	// Pos, Length in bytes in the (uncompressed) data file.
	Pos, Length int
}

func (sv *serializedVar) shape() shapes.Shape {
	return shapes.Shape{DType: sv.DType, Dimensions: sv.Dimensions}
}

// newCheckpointBaseName returns the base name for the next checkpoint files.
func (h *Handler) newCheckpointBaseName() string {
	now := time.Now().Format("20060102-150405")
	return fmt.Sprintf("%sn%07d-%s", baseNamePrefix, h.checkpointsCount, now)
}

// ListCheckpoints returns the base file names of the checkpoints in the
// directory, in creation order (older first). The actual file names are these
// base names suffixed with JsonNameSuffix and BinDataSuffix.
func (h *Handler) ListCheckpoints() ([]string, error) {
	checkpoints, err := listCheckpointsInDir(h.config.dir)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s", h)
	}
	return checkpoints, nil
}

func listCheckpointsInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed listing checkpoints in %q", dir)
	}
	var checkpoints []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()
		if len(fileName) <= len(baseNamePrefix)+len(JsonNameSuffix) ||
			fileName[:len(baseNamePrefix)] != baseNamePrefix ||
			fileName[len(fileName)-len(JsonNameSuffix):] != JsonNameSuffix {
			continue
		}
		checkpoints = append(checkpoints, fileName[:len(fileName)-len(JsonNameSuffix)])
	}
	sort.Strings(checkpoints)
	return checkpoints, nil
}

// HasCheckpoints returns whether there are any checkpoints saved.
func (h *Handler) HasCheckpoints() (bool, error) {
	list, err := h.ListCheckpoints()
	return len(list) > 0, err
}

var checkpointCountRegex = regexp.MustCompile(`^checkpoint-n(\d+)-`)

// maxCheckpointCount returns the largest checkpoint count among the saved
// checkpoints, or -1 if there are none.
func maxCheckpointCount(checkpoints []string) int {
	maxID := -1
	for _, name := range checkpoints {
		matches := checkpointCountRegex.FindStringSubmatch(name)
		if len(matches) != 2 {
			continue
		}
		id, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

// Save writes a new checkpoint with the current values of the model's
// variables, and prunes checkpoints beyond the configured Keep count.
func (h *Handler) Save() error {
	vars, err := modelVariables(h.config.model)
	if err != nil {
		return errors.WithMessagef(err, "%s: cannot save", h)
	}
	if len(vars) == 0 {
		return errors.Errorf("%s: model %T has no variables to save -- was it built?", h, h.config.model)
	}

	// Write to uuid-named temporary files, renamed into place at the end.
	tmpToken := uuid.NewString()
	tmpBinName := filepath.Join(h.config.dir, ".tmp-"+tmpToken+BinDataSuffix)
	tmpJsonName := filepath.Join(h.config.dir, ".tmp-"+tmpToken+JsonNameSuffix)
	removeTemps := func() {
		_ = os.Remove(tmpBinName)
		_ = os.Remove(tmpJsonName)
	}

	binWriter, err := newBinWriter(tmpBinName)
	if err != nil {
		removeTemps()
		return errors.WithMessagef(err, "%s: failed to create checkpoint data file", h)
	}
	serialized := &serializedData{BinFormat: "gzip"}
	pos := 0
	for _, pv := range vars {
		v := pv.Variable
		var writeErr error
		var written, memoryLen int
		v.Value().ConstBytes(func(rawData []byte) {
			memoryLen = len(rawData)
			written, writeErr = binWriter.Write(rawData)
		})
		if writeErr != nil {
			removeTemps()
			return errors.Wrapf(writeErr, "%s: failed to write variable %q", h, pv.Path)
		}
		if written != memoryLen {
			removeTemps()
			return errors.Errorf("%s: failed to write variable %q -- %d bytes requested, %d written",
				h, pv.Path, memoryLen, written)
		}
		shape := v.Shape()
		serialized.Variables = append(serialized.Variables, serializedVar{
			Path:       pv.Path,
			Name:       v.Name(),
			Scope:      v.Scope(),
			Trainable:  v.IsTrainable(),
			Dimensions: shape.Dimensions,
			DType:      shape.DType,
			Pos:        pos,
			Length:     memoryLen,
		})
		pos += memoryLen
	}
	if err = binWriter.Close(); err != nil {
		removeTemps()
		return errors.Wrapf(err, "%s: failed to close checkpoint data file", h)
	}

	jsonFile, err := os.Create(tmpJsonName)
	if err != nil {
		removeTemps()
		return errors.Wrapf(err, "%s: failed to create checkpoint metadata file", h)
	}
	enc := json.NewEncoder(jsonFile)
	enc.SetIndent("", "\t")
	if err = enc.Encode(serialized); err != nil {
		_ = jsonFile.Close()
		removeTemps()
		return errors.Wrapf(err, "%s: failed to write checkpoint metadata", h)
	}
	if err = jsonFile.Close(); err != nil {
		removeTemps()
		return errors.Wrapf(err, "%s: failed to close checkpoint metadata file", h)
	}

	baseName := h.newCheckpointBaseName()
	h.checkpointsCount++
	if err = os.Rename(tmpBinName, filepath.Join(h.config.dir, baseName+BinDataSuffix)); err != nil {
		removeTemps()
		return errors.Wrapf(err, "%s: failed to move checkpoint data file into place", h)
	}
	if err = os.Rename(tmpJsonName, filepath.Join(h.config.dir, baseName+JsonNameSuffix)); err != nil {
		removeTemps()
		return errors.Wrapf(err, "%s: failed to move checkpoint metadata file into place", h)
	}
	klog.V(1).Infof("%s: saved %q with %d variables (%d bytes of tensor data)", h, baseName, len(vars), pos)
	return h.keepNCheckpoints()
}

// keepNCheckpoints removes the older checkpoints beyond the configured count.
func (h *Handler) keepNCheckpoints() error {
	if h.config.keep <= 0 {
		return nil
	}
	checkpoints, err := h.ListCheckpoints()
	if err != nil {
		return err
	}
	for len(checkpoints) > h.config.keep {
		baseName := checkpoints[0]
		checkpoints = checkpoints[1:]
		for _, suffix := range []string{JsonNameSuffix, BinDataSuffix} {
			fileName := filepath.Join(h.config.dir, baseName+suffix)
			if err := os.Remove(fileName); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "%s: failed to remove old checkpoint file %q", h, fileName)
			}
		}
		klog.V(1).Infof("%s: removed old checkpoint %q", h, baseName)
	}
	return nil
}

// Load restores the most recent checkpoint into the model.
//
// Variables that already exist in the model must match the stored shapes, and
// get their values replaced. Variables of layers not yet built are created at
// their recorded paths, with the stored shape and values: when the layer later
// builds (on its first call, or with Build), it finds and validates them
// instead of initializing new ones.
//
// It returns an error if there is no checkpoint in the directory, or if the
// checkpoint does not fit the model.
func (h *Handler) Load() error {
	checkpoints, err := h.ListCheckpoints()
	if err != nil {
		return err
	}
	if len(checkpoints) == 0 {
		return errors.Errorf("%s: no checkpoint found to load", h)
	}
	baseName := checkpoints[len(checkpoints)-1]
	serialized, data, err := readCheckpoint(h.config.dir, baseName)
	if err != nil {
		return errors.WithMessagef(err, "%s", h)
	}
	for _, sv := range serialized.Variables {
		value, err := tensorFromStored(&sv, data)
		if err != nil {
			return errors.WithMessagef(err, "%s: checkpoint %q", h, baseName)
		}
		if err = restoreVariable(h.config.model, &sv, value); err != nil {
			return errors.WithMessagef(err, "%s: checkpoint %q", h, baseName)
		}
	}
	klog.V(1).Infof("%s: loaded %q with %d variables", h, baseName, len(serialized.Variables))
	return nil
}

// readCheckpoint reads and parses the metadata and the (uncompressed) tensor
// data of the checkpoint with the given base name.
func readCheckpoint(dir, baseName string) (*serializedData, []byte, error) {
	jsonFile, err := os.Open(filepath.Join(dir, baseName+JsonNameSuffix))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open checkpoint metadata %q", baseName)
	}
	defer func() { _ = jsonFile.Close() }()
	serialized := &serializedData{}
	if err = json.NewDecoder(jsonFile).Decode(serialized); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to parse checkpoint metadata %q", baseName)
	}

	binFile, err := os.Open(filepath.Join(dir, baseName+BinDataSuffix))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open checkpoint data %q", baseName)
	}
	defer func() { _ = binFile.Close() }()
	reader, err := newBinReader(binFile)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "checkpoint data %q", baseName)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read checkpoint data %q", baseName)
	}
	return serialized, data, nil
}

// tensorFromStored builds the tensor for one stored variable, copying its
// bytes out of the uncompressed data blob.
func tensorFromStored(sv *serializedVar, data []byte) (*tensors.Tensor, error) {
	shape := sv.shape()
	if !shape.Ok() {
		return nil, errors.Errorf("variable %q has invalid stored shape", sv.Path)
	}
	if sv.Pos < 0 || sv.Length < 0 || sv.Pos+sv.Length > len(data) {
		return nil, errors.Errorf("variable %q data range [%d:%d] out of bounds (%d bytes stored)",
			sv.Path, sv.Pos, sv.Pos+sv.Length, len(data))
	}
	if uintptr(sv.Length) != shape.Memory() {
		return nil, errors.Errorf("variable %q has %d bytes stored, but shape %s requires %d",
			sv.Path, sv.Length, shape, shape.Memory())
	}
	value := tensors.FromShape(shape)
	value.MutableBytes(func(raw []byte) {
		copy(raw, data[sv.Pos:sv.Pos+sv.Length])
	})
	return value, nil
}

// modelVariables collects the model's variables and paths, converting walker
// errors (e.g. a Variable held by value) into a returned error.
func modelVariables(model any) (vars []nn.PathAndVariable, err error) {
	for pv, iterErr := range nn.NamedVariables(model) {
		if iterErr != nil {
			return nil, iterErr
		}
		vars = append(vars, pv)
	}
	return vars, nil
}

// Binary data file format: a fixed magic header, one byte with the length of
// the format name, the format name ("gzip"), and then the payload.

const binMagicHeader = "sprout_checkpoints"

var binFormatGzip = []byte("gzip")

type binFileWriter struct {
	file *os.File
	gz   *gzip.Writer
}

func newBinWriter(path string) (*binFileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %q", path)
	}
	header := append([]byte(binMagicHeader), uint8(len(binFormatGzip)))
	header = append(header, binFormatGzip...)
	if _, err = f.Write(header); err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to write header to %q", path)
	}
	return &binFileWriter{file: f, gz: gzip.NewWriter(f)}, nil
}

func (w *binFileWriter) Write(data []byte) (int, error) {
	return w.gz.Write(data)
}

func (w *binFileWriter) Close() error {
	if err := w.gz.Close(); err != nil {
		_ = w.file.Close()
		return errors.Wrap(err, "failed to flush gzip stream")
	}
	return w.file.Close()
}

func newBinReader(f io.Reader) (io.Reader, error) {
	magic := make([]byte, len(binMagicHeader))
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, errors.Wrap(err, "failed to read data file header")
	}
	if string(magic) != binMagicHeader {
		return nil, errors.Errorf("data file is not a sprout checkpoint (bad magic header)")
	}
	var formatLen uint8
	if err := binary.Read(f, binary.LittleEndian, &formatLen); err != nil {
		return nil, errors.Wrap(err, "failed to read data file header")
	}
	format := make([]byte, formatLen)
	if _, err := io.ReadFull(f, format); err != nil {
		return nil, errors.Wrap(err, "failed to read data file header")
	}
	if string(format) != string(binFormatGzip) {
		return nil, errors.Errorf("unsupported checkpoint data compression %q", format)
	}
	reader, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open gzip stream")
	}
	return reader, nil
}
