package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"auction-core/utils"
)

// NATSPublisher publishes JSON events on per-listing subjects,
// e.g. auction.bids.<listing_id>.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the broker at url
func NewNATSPublisher(url string, connectTimeout time.Duration) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("auction-core publisher"),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			fields := map[string]any{}
			if err != nil {
				fields["error"] = err.Error()
			}
			utils.Warn("nats disconnected", fields)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			utils.Info("nats reconnected", map[string]any{"url": nc.ConnectedUrl()})
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: connect to nats at %s: %w", url, err)
	}
	utils.Info("nats publisher connected", map[string]any{"url": conn.ConnectedUrl()})

	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) PublishBidPlaced(_ context.Context, evt BidPlaced) error {
	return p.publish(SubjectBidPlaced+"."+evt.ListingID, evt)
}

func (p *NATSPublisher) PublishAuctionClosed(_ context.Context, evt AuctionClosed) error {
	return p.publish(SubjectAuctionClosed+"."+evt.ListingID, evt)
}

func (p *NATSPublisher) publish(subject string, evt any) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}
	utils.Debug("event published", map[string]any{"subject": subject, "bytes": len(data)})
	return nil
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if p.conn == nil || p.conn.IsClosed() {
		return
	}
	if err := p.conn.Drain(); err != nil {
		utils.Error("nats drain failed", map[string]any{"error": err.Error()})
		p.conn.Close()
	}
}
