package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func ExampleManager_Claim() {
	ctx := context.Background()
	manager, _ := NewManager(newMemoryStore(), 30*24*time.Hour, 5*time.Minute)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	claim, _ := manager.Claim(ctx, "order-sales-writer", eventID)
	fmt.Println(claim)
	claim, _ = manager.Claim(ctx, "order-sales-writer", eventID)
	fmt.Println(claim)
	_ = manager.Complete(ctx, "order-sales-writer", eventID)
	claim, _ = manager.Claim(ctx, "order-sales-writer", eventID)
	fmt.Println(claim)
	// Output:
	// acquired
	// in_flight
	// done
}
