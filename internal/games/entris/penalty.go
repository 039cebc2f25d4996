package entris

import "sync"

// PenaltyChannel couples the lines a player clears to the lines injected
// into opponents. Inbound holds line counts to receive, outbound holds line
// counts earned and not yet confirmed by the server.
//
// It is safe for concurrent use. When both are needed, the game lock is
// taken before the channel lock.
type PenaltyChannel struct {
	mu       sync.Mutex
	inbound  []int
	outbound []int
}

// NewPenaltyChannel creates an empty channel.
func NewPenaltyChannel() *PenaltyChannel {
	return &PenaltyChannel{}
}

// Regurgitate queues n incoming penalty lines. Non-positive counts are ignored.
func (p *PenaltyChannel) Regurgitate(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.inbound = append(p.inbound, n)
	p.mu.Unlock()
}

// PopInbound removes and returns the oldest incoming penalty.
func (p *PenaltyChannel) PopInbound() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inbound) == 0 {
		return 0, false
	}
	n := p.inbound[0]
	p.inbound = p.inbound[1:]
	return n, true
}

// PendingInbound returns the total number of lines waiting to be received.
func (p *PenaltyChannel) PendingInbound() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.inbound {
		total += n
	}
	return total
}

// PushOutbound queues n earned lines for delivery to opponents.
func (p *PenaltyChannel) PushOutbound(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.outbound = append(p.outbound, n)
	p.mu.Unlock()
}

// PeekOutbound returns the oldest undelivered count without removing it.
func (p *PenaltyChannel) PeekOutbound() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.outbound) == 0 {
		return 0, false
	}
	return p.outbound[0], true
}

// ConfirmOutbound drops the oldest outbound count after the server accepted it.
func (p *PenaltyChannel) ConfirmOutbound() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.outbound) > 0 {
		p.outbound = p.outbound[1:]
	}
}

// OutboundLen returns the number of undelivered counts.
func (p *PenaltyChannel) OutboundLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outbound)
}
