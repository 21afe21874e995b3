package main

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"commentflow/internal/config"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the preference database and config file",
		Long: `Creates a compressed .tar.gz archive containing the preference database
and the configuration file. The backup is timestamped by default. The
Chrome profile is not included.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dbPath := cfg.Prefs.DBPath

			if outputPath == "" {
				backupDir := filepath.Join(config.DefaultConfigDir(), "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				ts := time.Now().Format("20060102-150405")
				outputPath = filepath.Join(backupDir, fmt.Sprintf("commentflow-backup-%s.tar.gz", ts))
			}

			files := backupFiles(dbPath, cfgPath)
			if len(files) == 0 {
				return fmt.Errorf("no files to backup (db: %s, config: %s)", dbPath, cfgPath)
			}

			if err := createTarGz(outputPath, files); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			data := pterm.TableData{{"File", "Size"}}
			for _, f := range files {
				size := int64(0)
				if info, err := os.Stat(f); err == nil {
					size = info.Size()
				}
				data = append(data, []string{filepath.Base(f), humanSize(size)})
			}
			pterm.Success.Printfln("Backup created: %s", outputPath)
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: ~/.commentflow/backups/commentflow-backup-<timestamp>.tar.gz)")
	return cmd
}

// backupFiles lists the existing files worth archiving: the database with
// its WAL and SHM companions, then the config file.
func backupFiles(dbPath, cfgPath string) []string {
	var files []string
	if _, err := os.Stat(dbPath); err == nil {
		files = append(files, dbPath)
		for _, suffix := range []string{"-wal", "-shm"} {
			if _, err := os.Stat(dbPath + suffix); err == nil {
				files = append(files, dbPath+suffix)
			}
		}
	}
	if _, err := os.Stat(cfgPath); err == nil {
		files = append(files, cfgPath)
	}
	return files
}

func restoreCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore [file.tar.gz]",
		Short: "Restore the preference database and config from a backup",
		Long: `Restores the preference database and configuration file from a .tar.gz
backup archive created by 'commentflow backup'. Stop any running stream first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dbPath := cfg.Prefs.DBPath

			if !force && len(backupFiles(dbPath, cfgPath)) > 0 {
				pterm.Warning.Println("This will overwrite existing data.")
				pterm.Warning.Printfln("  Database: %s", dbPath)
				pterm.Warning.Printfln("  Config:   %s", cfgPath)
				return fmt.Errorf("restore aborted (use --force to proceed)")
			}

			restored, err := extractTarGz(args[0], dbPath, cfgPath)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			pterm.Success.Printfln("Restored %d file(s) from %s", len(restored), args[0])
			for _, f := range restored {
				fmt.Printf("  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data without warning")
	return cmd
}

// createTarGz creates a .tar.gz archive from the given files.
func createTarGz(outputPath string, files []string) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	gzWriter := gzip.NewWriter(outFile)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	for _, filePath := range files {
		if err := addFileToTar(tarWriter, filePath); err != nil {
			return fmt.Errorf("add %s: %w", filePath, err)
		}
	}

	return nil
}

func addFileToTar(tw *tar.Writer, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.Base(filePath)

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tw, file)
	return err
}

// restoreTarget maps an archived file name to where it is restored.
// Unknown names return "".
func restoreTarget(name, dbPath, cfgPath string) string {
	base := filepath.Base(name)
	switch {
	case base == filepath.Base(cfgPath), base == "config.json", base == "config.yaml", base == "config.yml":
		return cfgPath
	case strings.HasSuffix(base, ".db"):
		return dbPath
	case strings.HasSuffix(base, ".db-wal"):
		return dbPath + "-wal"
	case strings.HasSuffix(base, ".db-shm"):
		return dbPath + "-shm"
	}
	return ""
}

// extractTarGz extracts relevant files from a backup archive.
func extractTarGz(archivePath, dbPath, cfgPath string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("not a valid gzip file: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	var restored []string

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		targetPath := restoreTarget(header.Name, dbPath, cfgPath)
		if targetPath == "" {
			logger.Warn("skipping unknown file in archive", "name", header.Name)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return nil, err
		}

		outFile, err := os.Create(targetPath)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", targetPath, err)
		}

		if _, err := io.Copy(outFile, tarReader); err != nil {
			outFile.Close()
			return nil, fmt.Errorf("extract %s: %w", targetPath, err)
		}
		outFile.Close()

		restored = append(restored, targetPath)
	}

	return restored, nil
}

func humanSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
