package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskCnReservationExpire 运单号预留到期清理任务
	TaskCnReservationExpire = "cn:reservation:expire"
)

// CnReservationExpirePayload 预留到期任务载荷
type CnReservationExpirePayload struct {
	CN        string    `json:"cn"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewCnReservationExpireTask 创建预留到期任务
func NewCnReservationExpireTask(payload CnReservationExpirePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCnReservationExpire, body), nil
}

// ParseCnReservationExpirePayload 解析预留到期任务载荷
func ParseCnReservationExpirePayload(task *asynq.Task) (CnReservationExpirePayload, error) {
	var payload CnReservationExpirePayload
	if task == nil {
		return payload, nil
	}
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}
