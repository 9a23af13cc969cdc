package reconcile

import (
	"fmt"
	"strings"

	"focussync/internal/models"
)

type Collection string

const (
	CollectionSettings  Collection = "settings"
	CollectionApps      Collection = "apps"
	CollectionReminders Collection = "reminders"
	CollectionAnalytics Collection = "analytics"
	CollectionLocal     Collection = "local"
	CollectionCloud     Collection = "cloud"
)

type Op string

const (
	OpUpload   Op = "upload"
	OpDownload Op = "download"
	OpPresence Op = "presence"
	OpSnapshot Op = "snapshot"
	OpPull     Op = "pull"
	OpMerge    Op = "merge"
)

// CollectionError labels a store failure with the collection it hit.
type CollectionError struct {
	Collection Collection
	Op         Op
	Err        error
}

func (e *CollectionError) Error() string {
	name := string(e.Collection)
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return fmt.Sprintf("%s %s failed: %v", name, e.Op, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

func wrap(c Collection, op Op, err error) error {
	if err == nil {
		return nil
	}
	return &CollectionError{Collection: c, Op: op, Err: err}
}

func validateUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", models.ErrInvalidArgument)
	}
	return nil
}
