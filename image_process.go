package main

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"png2webp/exifcomment"
	"png2webp/filetime"
	"png2webp/logger"
	"png2webp/pngmeta"

	"github.com/chai2010/webp"
	xwebp "golang.org/x/image/webp"
)

type Processor struct {
	Config  *Config
	Options *webp.Options
	Console *logger.Console
	Times   filetime.Writer

	embed  func(destPath string, metadata *pngmeta.Metadata) error
	remove func(path string) error
}

type ProcessStats struct {
	mu                  sync.Mutex
	TotalOriginalSize   int64
	TotalCompressedSize int64
	TotalFiles          int
	ProcessedFiles      int
	SuccessfulFiles     int
	FailedFiles         int
	MetadataEmbedded    int
	MetadataMissing     int
	EmbedFailures       int
	TimestampFailures   int
	DeletedFiles        int
	DeleteFailures      int
	SourcesKept         int
}

// fileResult is what one conversion reports back to the batch. Everything
// after the encode step is best-effort and only flagged here.
type fileResult struct {
	OriginalSize    int64
	CompressedSize  int64
	Embedded        bool
	MetadataMissing bool
	EmbedFailed     bool
	TimesFailed     bool
	Deleted         bool
	DeleteFailed    bool
	SourceKept      bool
}

func NewProcessor(cfg *Config, console *logger.Console, times filetime.Writer) *Processor {
	return &Processor{
		Config:  cfg,
		Options: cfg.GetEncodingOptions(),
		Console: console,
		Times:   times,
		embed:   embedMetadata,
		remove:  os.Remove,
	}
}

// Discover lists the files in dir whose extension is ext, in name order.
// Subdirectories and dot files are skipped.
func Discover(dir, ext string, foldCase bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		fileExt := filepath.Ext(name)
		if fileExt == ext || (foldCase && strings.EqualFold(fileExt, ext)) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files, nil
}

// DestinationPath maps a source file to {dir}/{stem}{DestExt}.
func (p *Processor) DestinationPath(dir, srcPath string) string {
	base := filepath.Base(srcPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+p.Config.DestExt)
}

func (p *Processor) ProcessDirectory(dirPath string) (*ProcessStats, error) {
	fileInfo, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("path validation error: %w", err)
	}
	if !fileInfo.IsDir() {
		return nil, fmt.Errorf("path validation error: %s is not a directory", dirPath)
	}

	p.Console.Info("Processing directory: %s (workers: %d, %s, delete source: %t)",
		dirPath, p.Config.Workers, p.Config.encodingMode(), p.Config.DeleteSource)

	filesToProcess, err := Discover(dirPath, p.Config.SourceExt, p.Config.FoldExtCase)
	if err != nil {
		return nil, fmt.Errorf("file collection error: %w", err)
	}

	totalFiles := len(filesToProcess)
	stats := &ProcessStats{TotalFiles: totalFiles}
	p.Console.Info("Discovered %d %s files", totalFiles, strings.TrimPrefix(p.Config.SourceExt, "."))

	if totalFiles == 0 {
		p.Console.Warn("No files found to process")
		return stats, nil
	}

	if p.Config.Workers > 1 {
		p.processFilesParallel(dirPath, filesToProcess, stats)
	} else {
		for _, file := range filesToProcess {
			p.processOne(dirPath, file, stats, 0, nil)
		}
	}

	p.displayResults(stats)

	return stats, nil
}

// processFilesParallel fans the list out to Workers goroutines. Stems are
// unique within one directory, so no two workers share a destination.
func (p *Processor) processFilesParallel(dirPath string, files []string, stats *ProcessStats) {
	workers := p.Config.Workers
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan string, len(files))
	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	var bar *logger.ProgressBar
	if !p.Config.JSONLog {
		bar = p.Console.NewProgressBar(int64(len(files)), "Converting images")
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for filePath := range jobs {
				p.processOne(dirPath, filePath, stats, id+1, bar)
			}
		}(w)
	}

	wg.Wait()
	if bar != nil {
		bar.Complete()
	}
}

// processOne is the failure boundary for a single file: errors and panics
// are logged and counted, never returned.
func (p *Processor) processOne(dirPath, filePath string, stats *ProcessStats, worker int, bar *logger.ProgressBar) {
	console := p.Console.With("file", filepath.Base(filePath))
	if worker > 0 {
		console = console.With("worker", worker)
	}

	res, err := func() (res fileResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return p.convertFile(dirPath, filePath, console)
	}()

	stats.mu.Lock()
	defer stats.mu.Unlock()

	stats.ProcessedFiles++
	progress := float64(stats.ProcessedFiles) / float64(stats.TotalFiles) * 100
	if bar != nil {
		defer bar.Increment(1)
	}

	if err != nil {
		stats.FailedFiles++
		console.Error("Error processing %s: %v (%.1f%% complete)", filepath.Base(filePath), err, progress)
		return
	}

	stats.SuccessfulFiles++
	stats.TotalOriginalSize += res.OriginalSize
	stats.TotalCompressedSize += res.CompressedSize
	if res.Embedded {
		stats.MetadataEmbedded++
	}
	if res.MetadataMissing {
		stats.MetadataMissing++
	}
	if res.EmbedFailed {
		stats.EmbedFailures++
	}
	if res.TimesFailed {
		stats.TimestampFailures++
	}
	if res.Deleted {
		stats.DeletedFiles++
	}
	if res.DeleteFailed {
		stats.DeleteFailures++
	}
	if res.SourceKept {
		stats.SourcesKept++
	}

	msg := fmt.Sprintf("Converted %s (%d KB → %d KB, %.1f%% complete)",
		filepath.Base(filePath), res.OriginalSize/1024, res.CompressedSize/1024, progress)
	if bar != nil {
		// The bar already reports progress; keep the line for -v.
		console.Debug("%s", msg)
		return
	}
	console.Success("%s", msg)
}

func (p *Processor) convertFile(dirPath, srcPath string, console *logger.Console) (fileResult, error) {
	var res fileResult
	destPath := p.DestinationPath(dirPath, srcPath)
	timer := console.StartTimer("Conversion of " + filepath.Base(srcPath))

	// Times are captured before anything reads the file.
	times, timesErr := filetime.Read(srcPath)
	if timesErr != nil {
		console.Warn("Unable to read file times: %v", timesErr)
	}

	metadata, err := pngmeta.Extract(srcPath)
	if err != nil {
		console.Warn("Unable to read PNG metadata: %v", err)
	} else {
		console.Debug("Read %d PNG text entries", metadata.Len())
	}

	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return res, fmt.Errorf("failed to get file info: %w", err)
	}
	res.OriginalSize = srcInfo.Size()

	if err := p.encode(srcPath, destPath, srcInfo.Mode().Perm()); err != nil {
		return res, err
	}
	p.describeOutput(destPath, console)

	if metadata != nil {
		if err := p.embed(destPath, metadata); err != nil {
			console.Warn("Unable to embed metadata: %v", err)
			res.EmbedFailed = true
		} else {
			res.Embedded = true
		}
	} else {
		console.Warn("No PNG metadata available, skipping EXIF")
		res.MetadataMissing = true
	}

	if timesErr == nil {
		if err := p.Times.Restore(destPath, times); err != nil {
			console.Warn("Unable to restore file times: %v", err)
			res.TimesFailed = true
		}
	} else {
		res.TimesFailed = true
	}

	if destInfo, err := os.Stat(destPath); err == nil {
		res.CompressedSize = destInfo.Size()
	}

	switch {
	case !p.Config.DeleteSource:
	case res.EmbedFailed:
		// The source is the only copy of the text metadata.
		console.Warn("Keeping source %s: metadata was not embedded", filepath.Base(srcPath))
		res.SourceKept = true
	default:
		if err := p.remove(srcPath); err != nil {
			console.Error("Unable to delete source: %v", err)
			res.DeleteFailed = true
		} else {
			console.Debug("Deleted source %s", filepath.Base(srcPath))
			res.Deleted = true
		}
	}

	timer.End()
	return res, nil
}

// encode decodes the PNG at srcPath and writes it as WEBP to destPath via a
// temporary file, so destPath only ever holds a complete image.
func (p *Processor) encode(srcPath, destPath string, perm os.FileMode) (err error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("error decoding image: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(destPath), ".*"+p.Config.DestExt+".tmp")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	tempFileClosed := false
	defer func() {
		if !tempFileClosed {
			tempFile.Close()
		}
		if err != nil {
			os.Remove(tempPath)
		}
	}()

	if err = webp.Encode(tempFile, img, p.Options); err != nil {
		return fmt.Errorf("error encoding to WEBP: %w", err)
	}

	tempFileClosed = true
	if err = tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err = os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("error setting permissions: %w", err)
	}

	if err = os.Rename(tempPath, destPath); err != nil {
		return fmt.Errorf("error renaming file: %w", err)
	}

	return nil
}

func embedMetadata(destPath string, metadata *pngmeta.Metadata) error {
	exifData, err := exifcomment.Build(metadata.Flatten())
	if err != nil {
		return err
	}
	return exifcomment.Embed(destPath, exifData)
}

func (p *Processor) describeOutput(destPath string, console *logger.Console) {
	f, err := os.Open(destPath)
	if err != nil {
		return
	}
	defer f.Close()

	cfg, err := xwebp.DecodeConfig(f)
	if err != nil {
		console.Warn("Written WEBP header is unreadable: %v", err)
		return
	}
	console.Debug("Encoded %dx%d %s", cfg.Width, cfg.Height, p.Config.encodingMode())
}

func (p *Processor) displayResults(stats *ProcessStats) {
	var overallCompressionRatio float64
	if stats.TotalOriginalSize > 0 {
		overallCompressionRatio = float64(stats.TotalCompressedSize) / float64(stats.TotalOriginalSize) * 100
	}

	table := p.Console.NewTable([]string{"Metric", "Value"})
	table.AddRow("Converted files", fmt.Sprintf("%d/%d", stats.SuccessfulFiles, stats.TotalFiles))
	table.AddRow("Failed files", fmt.Sprintf("%d", stats.FailedFiles))
	table.AddRow("Metadata embedded", fmt.Sprintf("%d", stats.MetadataEmbedded))
	table.AddRow("Metadata missing", fmt.Sprintf("%d", stats.MetadataMissing))
	table.AddRow("Embed failures", fmt.Sprintf("%d", stats.EmbedFailures))
	table.AddRow("Timestamp failures", fmt.Sprintf("%d", stats.TimestampFailures))
	if p.Config.DeleteSource {
		table.AddRow("Sources deleted", fmt.Sprintf("%d", stats.DeletedFiles))
		table.AddRow("Delete failures", fmt.Sprintf("%d", stats.DeleteFailures))
		table.AddRow("Sources kept", fmt.Sprintf("%d", stats.SourcesKept))
	}
	table.AddRow("Original size", fmt.Sprintf("%.2f MB", float64(stats.TotalOriginalSize)/1024/1024))
	table.AddRow("Compressed size", fmt.Sprintf("%.2f MB", float64(stats.TotalCompressedSize)/1024/1024))
	table.AddRow("Compression ratio", fmt.Sprintf("%.1f%%", overallCompressionRatio))

	if overallCompressionRatio > 0 && stats.TotalOriginalSize > stats.TotalCompressedSize {
		savedSpace := stats.TotalOriginalSize - stats.TotalCompressedSize
		table.AddRow("Space saved", fmt.Sprintf("%.2f MB", float64(savedSpace)/1024/1024))
	}

	p.Console.Info("Processing summary:")
	table.Print()
}
