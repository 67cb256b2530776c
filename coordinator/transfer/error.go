package transfer

import (
	"fmt"
	"sort"
	"strings"

	apierrors "github.com/cubefs/distmatrix/errors"
	"github.com/cubefs/distmatrix/proto"
)

// TransferError lists the partitions a transfer could not place.
// Those entries stay unplaced and are retried by the next transfer.
type TransferError struct {
	Backend  proto.Backend
	Failures map[proto.EntryID]error
}

func (e *TransferError) Error() string {
	ids := e.EntryIDs()
	items := make([]string, 0, len(ids))
	for _, id := range ids {
		items = append(items, fmt.Sprintf("entry[%d]: %s", id, e.Failures[id]))
	}
	return fmt.Sprintf("%s: backend[%s] %d partition(s): %s",
		apierrors.ErrTransferFailed, e.Backend, len(ids), strings.Join(items, "; "))
}

func (e *TransferError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, apierrors.ErrTransferFailed)
	for _, id := range e.EntryIDs() {
		errs = append(errs, e.Failures[id])
	}
	return errs
}

// EntryIDs returns the failed entries in ascending order.
func (e *TransferError) EntryIDs() []proto.EntryID {
	ids := make([]proto.EntryID, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
