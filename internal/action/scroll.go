package action

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// ScrollIntoView scrolls the node into the viewport if it is not already
// visible.
func ScrollIntoView(id cdp.NodeID) chromedp.Action {
	return dom.ScrollIntoViewIfNeeded().WithNodeID(id)
}

// BoxModel reads the rendered box of a node. Nodes that are not rendered
// (display:none, detached) have no box and return an error.
func BoxModel(id cdp.NodeID, box **dom.BoxModel) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		b, err := dom.GetBoxModel().WithNodeID(id).Do(ctx)
		if err != nil {
			return err
		}
		*box = b
		return nil
	}
}
