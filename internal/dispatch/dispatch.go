// Package dispatch wires the worker services to their queues. It is the one
// place that knows the full queue topology and per-type concurrency caps.
package dispatch

import (
	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
	"github.com/ViniMktd/FlowBot-sub001/internal/messaging"
	"github.com/ViniMktd/FlowBot-sub001/internal/notify"
	"github.com/ViniMktd/FlowBot-sub001/internal/orders"
	"github.com/ViniMktd/FlowBot-sub001/internal/pipeline"
	"github.com/ViniMktd/FlowBot-sub001/internal/supplier"
	"github.com/ViniMktd/FlowBot-sub001/internal/tracking"
)

// Queues lists every queue the pipeline runs, in creation order.
func Queues() []string {
	return []string{
		domain.QueueOrders,
		domain.QueueSupplier,
		domain.QueueMessaging,
		domain.QueueTracking,
		domain.QueueNotification,
	}
}

// Services bundles the worker services Register wires in.
type Services struct {
	Orders    *orders.Service
	Supplier  *supplier.Service
	Messaging *messaging.Service
	Tracking  *tracking.Service
	Notify    *notify.Service
}

// Register attaches every handler to its queue with its concurrency cap.
// Caps are per (queue, type): heavyweight scans run near-serial while cheap
// sends fan wide.
func Register(p *pipeline.Pipeline, s Services) {
	type registration struct {
		queue       string
		jobType     string
		concurrency int
		handler     pipeline.Handler
	}
	regs := []registration{
		{domain.QueueOrders, domain.JobProcessOrder, 5, s.Orders.ProcessOrder()},
		{domain.QueueOrders, domain.JobUpdateOrderStatus, 10, s.Orders.UpdateOrderStatus()},
		{domain.QueueOrders, domain.JobReconcileInventory, 2, s.Orders.ReconcileInventory()},

		{domain.QueueSupplier, domain.JobSendOrderToSupplier, 5, s.Supplier.SendOrderToSupplier()},
		{domain.QueueSupplier, domain.JobIngestSupplierConfirmation, 10, s.Supplier.IngestSupplierConfirmation()},
		{domain.QueueSupplier, domain.JobSyncSupplierInventory, 2, s.Supplier.SyncSupplierInventory()},
		{domain.QueueSupplier, domain.JobRelayTrackingUpdate, 10, s.Supplier.RelayTrackingUpdate()},
		{domain.QueueSupplier, domain.JobIngestReturnedProduct, 5, s.Supplier.IngestReturnedProduct()},
		{domain.QueueSupplier, domain.JobMonitorSupplierPerformance, 2, s.Supplier.MonitorSupplierPerformance()},

		{domain.QueueMessaging, domain.JobSendOrderConfirmation, 10, s.Messaging.SendOrderConfirmation()},
		{domain.QueueMessaging, domain.JobSendShippingNotification, 10, s.Messaging.SendShippingNotification()},
		{domain.QueueMessaging, domain.JobSendDeliveryNotification, 10, s.Messaging.SendDeliveryNotification()},
		{domain.QueueMessaging, domain.JobSendCancellationNotice, 10, s.Messaging.SendCancellationNotice()},
		{domain.QueueMessaging, domain.JobSendReviewReminder, 5, s.Messaging.SendReviewReminder()},
		{domain.QueueMessaging, domain.JobHandleInboundMessage, 10, s.Messaging.HandleInboundMessage()},

		{domain.QueueTracking, domain.JobPollCarrierStatus, 10, s.Tracking.PollCarrierStatus()},
		{domain.QueueTracking, domain.JobDetectOverdueOrders, 2, s.Tracking.DetectOverdueOrders()},
		{domain.QueueTracking, domain.JobGenerateTrackingReport, 1, s.Tracking.GenerateTrackingReport()},

		{domain.QueueNotification, domain.JobDeliverNotification, 10, s.Notify.DeliverNotification()},
		{domain.QueueNotification, domain.JobDeliverBatch, 1, s.Notify.DeliverBatch()},
		{domain.QueueNotification, domain.JobCleanupNotifications, 1, s.Notify.CleanupNotifications()},
	}
	for _, r := range regs {
		p.Queue(r.queue).Process(r.jobType, r.concurrency, r.handler)
	}
}
