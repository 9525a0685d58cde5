package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/samber/lo"

	"oci-gpu-toolkit/pkg/oci"
)

// DirectoryTypeLegacy marks the default identity store of the tenancy root.
const DirectoryTypeLegacy = "LEGACY"

// Directory is one identity store with the users listed from it. Error is set when the
// store could not be read; Users is then empty.
type Directory struct {
	Name     string              `json:"name"                yaml:"name"`
	Type     string              `json:"type"                yaml:"type"`
	ID       string              `json:"id"                  yaml:"id"`
	URL      string              `json:"url,omitempty"       yaml:"url,omitempty"`
	State    oci.LifecycleState  `json:"lifecycleState"      yaml:"lifecycleState"`
	RawState string              `json:"rawLifecycleState"   yaml:"rawLifecycleState"`
	Error    string              `json:"error,omitempty"     yaml:"error,omitempty"`
	Users    []oci.DirectoryUser `json:"users"               yaml:"users"`
}

// DirectoryReport is the outcome of a users listing.
type DirectoryReport struct {
	Filter      string      `json:"filter,omitempty" yaml:"filter,omitempty"`
	Directories []Directory `json:"directories"      yaml:"directories"`
}

// TotalUsers counts the users of every directory.
func (r DirectoryReport) TotalUsers() int {
	return lo.SumBy(r.Directories, func(d Directory) int { return len(d.Users) })
}

// Directories writes the per-directory summary and, unless summaryOnly, one user table per
// directory. With a filter, directories without matches are left out.
func Directories(w io.Writer, report DirectoryReport, summaryOnly bool, opts Options) {
	shown := report.Directories
	if report.Filter != "" {
		shown = lo.Filter(shown, func(d Directory, _ int) bool { return len(d.Users) > 0 })
	}

	if len(shown) == 0 {
		_, _ = fmt.Fprintf(w, "No users match %q.\n", report.Filter)

		return
	}

	rows := lo.Map(shown, func(d Directory, _ int) []string {
		count := fmt.Sprintf("%d", len(d.Users))
		if d.Error != "" {
			count = opts.dim(d.Error)
		}

		return []string{d.Name, d.Type, count, opts.State(d.State, d.RawState), d.ID}
	})
	Table(w, []string{"Directory", "Type", "Users", "State", "OCID"}, rows, opts)

	_, _ = fmt.Fprintf(w, "Total users: %d in %d directories\n", report.TotalUsers(), len(shown))

	if summaryOnly {
		return
	}

	for _, directory := range shown {
		if len(directory.Users) == 0 {
			continue
		}

		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, opts.heading(fmt.Sprintf("%s (%d users)", directory.Name, len(directory.Users))))

		userRows := lo.Map(directory.Users, func(user oci.DirectoryUser, _ int) []string {
			return []string{
				user.UserName,
				orDash(user.DisplayName),
				orDash(user.Email),
				userStatus(user),
				createdAt(user.TimeCreated),
				user.ID,
			}
		})
		Table(w, []string{"Username", "Display Name", "Email", "Status", "Created", "ID"}, userRows, opts)
	}
}

// DirectoriesCSV writes one row per user with its directory.
func DirectoriesCSV(w io.Writer, report DirectoryReport) error {
	writer := csv.NewWriter(w)

	err := writer.Write([]string{
		"Directory", "Directory Type", "Directory ID",
		"Username", "Display Name", "Email", "Status", "Created", "User ID",
	})
	if err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, directory := range report.Directories {
		for _, user := range directory.Users {
			err = writer.Write([]string{
				directory.Name,
				directory.Type,
				directory.ID,
				user.UserName,
				user.DisplayName,
				user.Email,
				userStatus(user),
				createdAt(user.TimeCreated),
				user.ID,
			})
			if err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	writer.Flush()

	err = writer.Error()
	if err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}

func userStatus(user oci.DirectoryUser) string {
	if user.Active {
		return string(oci.StateActive)
	}

	return string(oci.StateInactive)
}

func createdAt(value *time.Time) string {
	if value == nil {
		return "-"
	}

	return value.UTC().Format(time.DateTime)
}
