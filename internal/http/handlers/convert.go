package handlers

import (
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/geo"
)

func (r createOrderRequest) toInput() domain.CreateOrderInput {
	lines := make([]domain.OrderLineInput, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, domain.OrderLineInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return domain.CreateOrderInput{
		Items: lines,
		Destination: domain.Destination{
			Location: domain.Location{Lat: *r.Destination.Lat, Lng: *r.Destination.Lng},
			Address:  r.Destination.Address,
		},
		PaymentMethod: r.PaymentMethod,
		Notes:         r.Notes,
	}
}

func (r deliveryStatusRequest) toInput(deliveryID int64) domain.UpdateDeliveryStatusInput {
	in := domain.UpdateDeliveryStatusInput{
		DeliveryID: deliveryID,
		Status:     domain.DeliveryStatus(r.Status),
	}
	if r.Lat != nil && r.Lng != nil {
		in.Position = &domain.Location{Lat: *r.Lat, Lng: *r.Lng}
	}
	return in
}

func toDestinationDTO(d domain.Destination) destinationDTO {
	return destinationDTO{Lat: d.Lat, Lng: d.Lng, Address: d.Address}
}

func toOrderDTO(o domain.Order) orderDTO {
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
		})
	}
	return orderDTO{
		ID:            o.ID,
		Code:          o.Code,
		UserID:        o.UserID,
		Status:        string(o.Status),
		StatusDisplay: o.Status.Display(),
		Total:         o.Total,
		Destination:   toDestinationDTO(o.Destination),
		Notes:         o.Notes,
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		CancelledAt:   o.CancelledAt,
		ArrivedAt:     o.ArrivedAt,
	}
}

func toOrderDTOs(list []domain.Order) []orderDTO {
	out := make([]orderDTO, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderDTO(o))
	}
	return out
}

func toPaymentDTO(p domain.Payment) paymentDTO {
	return paymentDTO{
		ID:          p.ID,
		OrderID:     p.OrderID,
		Reference:   p.Reference,
		MerchantRef: p.MerchantRef,
		Method:      p.Method,
		Amount:      p.Amount,
		Status:      string(p.Status),
		CheckoutURL: p.CheckoutURL,
		ExpiresAt:   p.ExpiresAt,
		PaidAt:      p.PaidAt,
		RefundedAt:  p.RefundedAt,
	}
}

func toDeliveryDTO(d domain.DeliveryOrder) deliveryDTO {
	return deliveryDTO{
		ID:               d.ID,
		OrderID:          d.OrderID,
		DriverID:         d.DriverID,
		Status:           string(d.Status),
		DistanceKm:       d.DistanceKm,
		EstimatedMinutes: d.EstimatedMinutes,
		AssignedAt:       d.AssignedAt,
		CompletedAt:      d.CompletedAt,
	}
}

func toDeliveryDTOs(list []domain.DeliveryOrder) []deliveryDTO {
	out := make([]deliveryDTO, 0, len(list))
	for _, d := range list {
		out = append(out, toDeliveryDTO(d))
	}
	return out
}

func toWaybillDTO(wb domain.Waybill) waybillDTO {
	return waybillDTO{
		ID:       wb.ID,
		OrderID:  wb.OrderID,
		DriverID: wb.DriverID,
		Number:   wb.Number,
		Notes:    wb.Notes,
		IssuedAt: wb.IssuedAt,
	}
}

func toDriverDTO(u domain.User) driverDTO {
	return driverDTO{
		ID:            u.ID,
		Name:          u.Name,
		Availability:  string(u.Availability),
		VehicleType:   u.VehicleType,
		VehicleNumber: u.VehicleNumber,
	}
}

func toDriverDTOs(list []domain.User) []driverDTO {
	out := make([]driverDTO, 0, len(list))
	for _, u := range list {
		out = append(out, toDriverDTO(u))
	}
	return out
}

func toTrackPointDTO(p domain.TrackPoint) trackPointDTO {
	return trackPointDTO{Lat: p.Lat, Lng: p.Lng, RecordedAt: p.RecordedAt}
}

func toTrackPointDTOs(list []domain.TrackPoint) []trackPointDTO {
	out := make([]trackPointDTO, 0, len(list))
	for _, p := range list {
		out = append(out, toTrackPointDTO(p))
	}
	return out
}

func toTrackingDTO(v domain.TrackingView) trackingDTO {
	out := trackingDTO{
		OrderID:          v.OrderID,
		OrderCode:        v.OrderCode,
		Status:           v.Status,
		Destination:      toDestinationDTO(v.Destination),
		DeliveryID:       v.DeliveryID,
		DeliveryStatus:   string(v.DeliveryStatus),
		DistanceKm:       v.DistanceKm,
		EstimatedMinutes: v.EstimatedMinutes,
	}
	if v.Driver != nil {
		d := toDriverDTO(*v.Driver)
		d.Availability = ""
		out.Driver = &d
	}
	if v.LatestPosition != nil {
		p := toTrackPointDTO(*v.LatestPosition)
		out.LatestPosition = &p
	}
	return out
}

func toCompleteDTO(res domain.CompleteResult) completeDTO {
	return completeDTO{
		Delivery:   toDeliveryDTO(res.Delivery),
		Order:      toOrderDTO(res.Order),
		DistanceKm: geo.Round2(res.DistanceKm),
		RadiusKm:   res.RadiusKm,
	}
}

func toProductDTO(p domain.Product) productDTO {
	return productDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

func toProductDTOs(list []domain.Product) []productDTO {
	out := make([]productDTO, 0, len(list))
	for _, p := range list {
		out = append(out, toProductDTO(p))
	}
	return out
}
