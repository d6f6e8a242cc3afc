package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"gm-occasions/internal/logger"
	"gm-occasions/internal/models"
)

const (
	TopicBookingCreated   = "gm.occasions.booking.created"
	TopicBookingCancelled = "gm.occasions.booking.cancelled"
	TopicOccasionCreated  = "gm.occasions.occasion.created"
)

// Publisher is the slice of the producer the booking services depend on.
// Publishing is fire-and-forget from the caller's point of view; a broker
// outage never fails a booking.
type Publisher interface {
	PublishBookingCreated(booking models.Booking) error
	PublishBookingCancelled(booking models.Booking) error
	PublishOccasionCreated(occasion models.Booking) error
}

type Producer struct {
	created   *kafka.Writer
	cancelled *kafka.Writer
	occasions *kafka.Writer
	log       *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return &Producer{
		created:   writer(TopicBookingCreated),
		cancelled: writer(TopicBookingCancelled),
		occasions: writer(TopicOccasionCreated),
		log:       log,
	}
}

func (p *Producer) PublishBookingCreated(booking models.Booking) error {
	return p.publish(p.created, TopicBookingCreated, booking)
}

func (p *Producer) PublishBookingCancelled(booking models.Booking) error {
	return p.publish(p.cancelled, TopicBookingCancelled, booking)
}

func (p *Producer) PublishOccasionCreated(occasion models.Booking) error {
	return p.publish(p.occasions, TopicOccasionCreated, occasion)
}

func (p *Producer) publish(writer *kafka.Writer, topic string, booking models.Booking) error {
	event := models.BookingEvent{
		BookingID:       booking.ID,
		ParentBookingID: booking.ParentBookingID,
		Venue:           booking.Venue,
		TicketQuantity:  booking.TicketQuantity,
		ReferenceCode:   booking.ReferenceCode,
		Status:          booking.Status,
		OccurredAt:      time.Now().UTC(),
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.log.LogKafka("PUBLISH", topic, fmt.Sprintf("booking %s", booking.ID))

	return writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(booking.ID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	for _, w := range []*kafka.Writer{p.created, p.cancelled, p.occasions} {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}
