package worker

import (
	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/trb"
)

// transferEvent builds the Success Transfer Event every worker completion
// path enqueues. residual_length is always reported as 0: workers only
// raise a Transfer Event for IOC-marked TRBs or a completed control
// request, both of which this controller always treats as fully
// transferred per the documented completion-code simplification.
func transferEvent(trbAddr uint64, slotID, endpointID uint8) trb.TransferEvent {
	return trb.TransferEvent{
		TRBPointer:     trbAddr,
		CompletionCode: pkg.CompletionCodeSuccess,
		TransferLength: 0,
		SlotID:         slotID,
		EndpointID:     endpointID,
	}
}
