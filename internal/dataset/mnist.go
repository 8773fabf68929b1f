package dataset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

const (
	trainImagesFile = "train-images-idx3-ubyte.gz"
	trainLabelsFile = "train-labels-idx1-ubyte.gz"
	testImagesFile  = "t10k-images-idx3-ubyte.gz"
	testLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

// MNISTDigests are the SHA-256 digests of the published MNIST archives.
var MNISTDigests = map[string]string{
	trainImagesFile: "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
	trainLabelsFile: "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
	testImagesFile:  "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
	testLabelsFile:  "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
}

// DefaultMirrors are tried in order when an archive is not cached.
var DefaultMirrors = []string{
	"https://ossci-datasets.s3.amazonaws.com/mnist/",
	"https://storage.googleapis.com/cvdf-datasets/mnist/",
}

// ErrChecksumMismatch reports an archive whose digest differs from the expected one.
var ErrChecksumMismatch = errors.New("mnist: checksum mismatch")

// Fetcher loads MNIST from a local cache, downloading missing archives.
type Fetcher struct {
	// Root is the cache directory. Archives are also looked up in Root/MNIST/raw.
	Root    string
	Mirrors []string
	Client  *http.Client
	// Digests maps archive name to hex SHA-256. Nil means MNISTDigests.
	Digests map[string]string
	Logger  *slog.Logger
}

// LoadMNIST returns the MNIST train or test split cached under root.
func LoadMNIST(ctx context.Context, root string, train bool) (*Dataset, error) {
	f := &Fetcher{Root: root}
	return f.Load(ctx, train)
}

// Load returns the train or test split, fetching archives on first use.
func (f *Fetcher) Load(ctx context.Context, train bool) (*Dataset, error) {
	imagesName, labelsName, name := testImagesFile, testLabelsFile, "mnist-test"
	if train {
		imagesName, labelsName, name = trainImagesFile, trainLabelsFile, "mnist-train"
	}

	imageData, err := f.archive(ctx, imagesName)
	if err != nil {
		return nil, err
	}
	labelData, err := f.archive(ctx, labelsName)
	if err != nil {
		return nil, err
	}

	ds, err := decodeIDX(name, imageData, labelData)
	if err != nil {
		return nil, fmt.Errorf("mnist: decode %s: %w", name, err)
	}
	f.logger().Debug("dataset loaded", "name", name, "samples", ds.Len())
	return ds, nil
}

// archive returns the decompressed contents of the named archive.
func (f *Fetcher) archive(ctx context.Context, name string) ([]byte, error) {
	path, err := f.locate(name)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path, err = f.download(ctx, name)
		if err != nil {
			return nil, err
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mnist: open %s: %w", path, err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("mnist: gunzip %s: %w", path, err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(zr); err != nil {
		return nil, fmt.Errorf("mnist: read %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// locate returns the path of a verified cached archive, or "" when none is cached.
func (f *Fetcher) locate(name string) (string, error) {
	for _, dir := range []string{f.Root, filepath.Join(f.Root, "MNIST", "raw")} {
		path := filepath.Join(dir, name)
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("mnist: stat %s: %w", path, err)
		}
		if err := f.verify(path, name); err != nil {
			return "", err
		}
		return path, nil
	}
	return "", nil
}

func (f *Fetcher) verify(path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("mnist: open %s: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return fmt.Errorf("mnist: hash %s: %w", path, err)
	}
	if got, want := hex.EncodeToString(h.Sum(nil)), f.digest(name); got != want {
		return fmt.Errorf("%w: %s has %s, want %s", ErrChecksumMismatch, path, got, want)
	}
	return nil
}

// download fetches name from the first mirror that serves it with the
// expected digest and stores it under Root.
func (f *Fetcher) download(ctx context.Context, name string) (string, error) {
	if err := os.MkdirAll(f.Root, 0o755); err != nil {
		return "", fmt.Errorf("mnist: create cache dir: %w", err)
	}
	mirrors := f.Mirrors
	if len(mirrors) == 0 {
		mirrors = DefaultMirrors
	}

	var errs []error
	for _, mirror := range mirrors {
		url := mirror + name
		f.logger().Info("downloading dataset archive", "url", url)
		path, err := f.fetch(ctx, url, name)
		if err == nil {
			return path, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.logger().Warn("mirror failed", "url", url, "err", err)
		errs = append(errs, err)
	}
	return "", fmt.Errorf("mnist: download %s: %w", name, errors.Join(errs...))
}

func (f *Fetcher) fetch(ctx context.Context, url, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(f.Root, name+".*.part")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if got, want := hex.EncodeToString(h.Sum(nil)), f.digest(name); got != want {
		return "", fmt.Errorf("%w: %s served %s, want %s", ErrChecksumMismatch, url, got, want)
	}

	path := filepath.Join(f.Root, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

func (f *Fetcher) digest(name string) string {
	if f.Digests != nil {
		return f.Digests[name]
	}
	return MNISTDigests[name]
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}
