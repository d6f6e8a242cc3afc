package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"gm-occasions/internal/logger"
)

// EnsureTopicsExist creates the booking topics on startup so the first
// publish does not race topic auto-creation.
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", controller.Host)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			log.LogKafka("TOPIC", topic, "create failed: "+err.Error())
			// Keep going; the broker may auto-create on first publish.
			continue
		}
		log.LogKafka("TOPIC", topic, "created")
	}

	// Give the controller a moment to propagate metadata.
	time.Sleep(1 * time.Second)
	return nil
}

// DefaultTopics lists every topic this service publishes to.
func DefaultTopics() []string {
	return []string{TopicBookingCreated, TopicBookingCancelled, TopicOccasionCreated}
}
