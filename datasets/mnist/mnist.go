// Package mnist loads the MNIST handwritten digit files and prepares them
// as binarized, fully in-memory splits for gate network training. The four
// standard gzipped IDX files are read from a local directory; acquisition is
// someone else's job.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/openfluke/gatenet/nn"
)

// ImgSize is the side length of the original MNIST images.
const ImgSize = 28

const (
	trainImagesFile = "train-images-idx3-ubyte.gz"
	trainLabelsFile = "train-labels-idx1-ubyte.gz"
	testImagesFile  = "t10k-images-idx3-ubyte.gz"
	testLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

// Raw holds the untouched dataset: 28x28 grayscale bytes and digit labels.
type Raw struct {
	TrainImages [][]byte
	TrainLabels []byte
	TestImages  [][]byte
	TestLabels  []byte
}

// Load reads the four standard MNIST files from dir.
func Load(dir string) (*Raw, error) {
	trainImages, err := readImages(filepath.Join(dir, trainImagesFile))
	if err != nil {
		return nil, err
	}
	trainLabels, err := readLabels(filepath.Join(dir, trainLabelsFile))
	if err != nil {
		return nil, err
	}
	testImages, err := readImages(filepath.Join(dir, testImagesFile))
	if err != nil {
		return nil, err
	}
	testLabels, err := readLabels(filepath.Join(dir, testLabelsFile))
	if err != nil {
		return nil, err
	}
	if len(trainImages) != len(trainLabels) || len(testImages) != len(testLabels) {
		return nil, fmt.Errorf("image/label count mismatch: %d/%d train, %d/%d test",
			len(trainImages), len(trainLabels), len(testImages), len(testLabels))
	}
	return &Raw{
		TrainImages: trainImages,
		TrainLabels: trainLabels,
		TestImages:  testImages,
		TestLabels:  testLabels,
	}, nil
}

func openIDX(path string, wantMagic uint32) (io.ReadCloser, *os.File, []uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	var magic uint32
	if err := binary.Read(gz, binary.BigEndian, &magic); err != nil {
		gz.Close()
		f.Close()
		return nil, nil, nil, fmt.Errorf("failed to read %s header: %w", path, err)
	}
	if magic != wantMagic {
		gz.Close()
		f.Close()
		return nil, nil, nil, fmt.Errorf("%s: bad magic 0x%08x, want 0x%08x", path, magic, wantMagic)
	}

	// Dimension count is the low byte of the magic number.
	dims := make([]uint32, magic&0xff)
	for i := range dims {
		if err := binary.Read(gz, binary.BigEndian, &dims[i]); err != nil {
			gz.Close()
			f.Close()
			return nil, nil, nil, fmt.Errorf("failed to read %s header: %w", path, err)
		}
	}
	return gz, f, dims, nil
}

func readImages(path string) ([][]byte, error) {
	gz, f, dims, err := openIDX(path, 0x00000803)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	defer gz.Close()

	count, rows, cols := int(dims[0]), int(dims[1]), int(dims[2])
	if rows != ImgSize || cols != ImgSize {
		return nil, fmt.Errorf("%s: unexpected image size %dx%d", path, rows, cols)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) != count*rows*cols {
		return nil, fmt.Errorf("%s: got %d pixel bytes, want %d", path, len(data), count*rows*cols)
	}

	images := make([][]byte, count)
	for i := range images {
		images[i] = data[i*rows*cols : (i+1)*rows*cols]
	}
	return images, nil
}

func readLabels(path string) ([]byte, error) {
	gz, f, dims, err := openIDX(path, 0x00000801)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	defer gz.Close()

	count := int(dims[0])
	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) != count {
		return nil, fmt.Errorf("%s: got %d labels, want %d", path, len(data), count)
	}
	return data, nil
}

// Options controls preprocessing.
type Options struct {
	ImgWidth          int     // downscaled side length
	BinarizeThreshold float64 // per-image quantile for the 0/1 cut
	TrainFraction     float64 // share of the train file kept for training
	SplitSeed         int64   // seeds the train/val shuffle
	Categories        int
	Subset            bool // cap every split at 1024 samples
}

const subsetSamples = 1024

// Prepare downscales, binarizes and splits the raw data into the three
// in-memory splits the trainer and evaluator consume. The train/val split is
// a seeded shuffle, so the same SplitSeed always yields the same partition.
func Prepare(raw *Raw, opts Options) (*nn.Dataset, error) {
	if opts.ImgWidth <= 0 || opts.ImgWidth > ImgSize {
		return nil, fmt.Errorf("invalid image width %d", opts.ImgWidth)
	}
	if opts.TrainFraction <= 0 || opts.TrainFraction > 1 {
		return nil, fmt.Errorf("invalid train fraction %v", opts.TrainFraction)
	}
	if opts.Categories <= 0 {
		return nil, fmt.Errorf("invalid category count %d", opts.Categories)
	}

	perm := rand.New(rand.NewSource(opts.SplitSeed)).Perm(len(raw.TrainImages))
	trainSize := int(opts.TrainFraction * float64(len(perm)))

	trainIdx := perm[:trainSize]
	valIdx := perm[trainSize:]
	testIdx := make([]int, len(raw.TestImages))
	for i := range testIdx {
		testIdx[i] = i
	}
	if opts.Subset {
		trainIdx = capLen(trainIdx, subsetSamples)
		valIdx = capLen(valIdx, subsetSamples)
	}

	train, err := buildSplit(raw.TrainImages, raw.TrainLabels, trainIdx, opts)
	if err != nil {
		return nil, err
	}
	val, err := buildSplit(raw.TrainImages, raw.TrainLabels, valIdx, opts)
	if err != nil {
		return nil, err
	}
	test, err := buildSplit(raw.TestImages, raw.TestLabels, testIdx, opts)
	if err != nil {
		return nil, err
	}

	return &nn.Dataset{
		Train:      train,
		Val:        val,
		Test:       test,
		InputSize:  opts.ImgWidth * opts.ImgWidth,
		Categories: opts.Categories,
	}, nil
}

func capLen(idx []int, n int) []int {
	if len(idx) > n {
		return idx[:n]
	}
	return idx
}

func buildSplit(images [][]byte, labels []byte, idx []int, opts Options) (nn.Split, error) {
	inputSize := opts.ImgWidth * opts.ImgWidth
	split := nn.Split{
		Inputs:  make([]float32, len(idx)*inputSize),
		Labels:  make([]float32, len(idx)*opts.Categories),
		Samples: len(idx),
	}
	for out, i := range idx {
		label := int(labels[i])
		if label >= opts.Categories {
			return nn.Split{}, fmt.Errorf("label %d outside %d categories", label, opts.Categories)
		}
		features := split.Inputs[out*inputSize : (out+1)*inputSize]
		downscale(images[i], features, opts.ImgWidth)
		binarize(features, opts.BinarizeThreshold)
		split.Labels[out*opts.Categories+label] = 1
	}
	return split, nil
}

// downscale resizes a 28x28 image to width x width by nearest neighbor,
// scaling pixel bytes to [0,1].
func downscale(img []byte, dst []float32, width int) {
	for y := 0; y < width; y++ {
		sy := y * ImgSize / width
		for x := 0; x < width; x++ {
			sx := x * ImgSize / width
			dst[y*width+x] = float32(img[sy*ImgSize+sx]) / 255
		}
	}
}

// binarize replaces v with 1 where it exceeds the per-image quantile
// threshold and 0 elsewhere.
func binarize(v []float32, quantile float64) {
	threshold := quantileValue(v, quantile)
	for i, x := range v {
		if x > threshold {
			v[i] = 1
		} else {
			v[i] = 0
		}
	}
}

// quantileValue returns the q-quantile of v with linear interpolation
// between adjacent order statistics.
func quantileValue(v []float32, q float64) float32 {
	sorted := make([]float32, len(v))
	copy(sorted, v)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	frac := float32(pos - float64(lo))
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
