package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"vidpipe/internal/config"
)

// MinWorkspaceBytes is the free-space floor for the work volume. A render
// spills narration, stills, and two encode passes before the final file,
// so a nearly full disk fails mid-stage with an opaque ffmpeg error.
const MinWorkspaceBytes = 2 << 30

// Requirements derives the binary checks from the active configuration.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Render.FFmpegBinary,
			Description: "Required for rendering",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Render.FFprobeBinary,
			Description: "Required for media inspection",
		},
	}
}

// CheckCredentials reports whether the configured Google credentials are
// present: a service-account file for the sheet, an OAuth triple for the
// publish stage.
func CheckCredentials(cfg *config.Config) []Status {
	results := make([]Status, 0, 2)

	path := strings.TrimSpace(cfg.Sheet.CredentialsFile)
	sheet := Status{
		Name:        "Sheets credentials",
		Command:     path,
		Description: "Service account for the queue spreadsheet",
	}
	if path == "" {
		sheet.Detail = "credentials_file not configured"
	} else if info, err := os.Stat(path); err != nil {
		sheet.Detail = fmt.Sprintf("stat: %v", err)
	} else if info.IsDir() {
		sheet.Detail = "path is a directory"
	} else {
		sheet.Available = true
	}
	results = append(results, sheet)

	var missing []string
	if strings.TrimSpace(cfg.Publish.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(cfg.Publish.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if strings.TrimSpace(cfg.Publish.RefreshToken) == "" {
		missing = append(missing, "refresh_token")
	}
	youtube := Status{
		Name:        "YouTube OAuth",
		Description: "Upload credentials for the publish stage",
	}
	if len(missing) > 0 {
		youtube.Detail = "missing " + strings.Join(missing, ", ")
	} else {
		youtube.Available = true
	}
	results = append(results, youtube)

	return results
}

// CheckWorkspace verifies the work volume is writable and has room. The
// path is walked up to the nearest existing directory so the check works
// before the first run creates it.
func CheckWorkspace(dir string) Status {
	return checkWorkspace(dir, MinWorkspaceBytes)
}

func checkWorkspace(dir string, minBytes uint64) Status {
	status := Status{
		Name:        "Workspace",
		Command:     dir,
		Description: "Scratch volume for narration, stills, and renders",
	}
	if strings.TrimSpace(dir) == "" {
		status.Detail = "work_dir not configured"
		return status
	}
	probe := dir
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	if err := unix.Access(probe, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		status.Detail = fmt.Sprintf("insufficient permissions on %s: %v", probe, err)
		return status
	}
	var st unix.Statfs_t
	if err := unix.Statfs(probe, &st); err != nil {
		status.Detail = fmt.Sprintf("statfs %s: %v", probe, err)
		return status
	}
	free := st.Bavail * uint64(st.Bsize)
	if free < minBytes {
		status.Detail = fmt.Sprintf("%s free, need at least %s", formatBytes(free), formatBytes(minBytes))
		return status
	}
	status.Available = true
	status.Detail = fmt.Sprintf("%s free", formatBytes(free))
	return status
}

// Check runs every preflight against the active configuration. Both the
// daemon startup path and the CLI use this so the requirements list lives
// in one place.
func Check(cfg *config.Config) []Status {
	results := CheckBinaries(Requirements(cfg))
	results = append(results, CheckCredentials(cfg)...)
	results = append(results, CheckWorkspace(cfg.Paths.WorkDir))
	return results
}

func formatBytes(n uint64) string {
	const gib = 1 << 30
	if n >= gib {
		return fmt.Sprintf("%.1f GiB", float64(n)/gib)
	}
	return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
}
