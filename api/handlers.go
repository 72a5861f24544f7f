package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/crypto"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/x/paychan"
)

// bind decodes the JSON body into dst. It reports the failure itself and
// returns false when the body cannot be used.
func (s *Server) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.fail(c, errors.Wrapf(errors.ErrInput, "malformed request body: %s", err))
		return false
	}
	return true
}

func (s *Server) getInfo(c *gin.Context) {
	conf, err := s.svc.Configuration(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := gin.H{
		"chain_id":         conf.ChainID,
		"authority":        conf.Authority,
		"challenge_period": conf.ChallengePeriod,
		"challenge_policy": conf.ChallengePolicy,
		"max_duration":     conf.MaxDuration,
		"denomination":     s.denom,
	}
	for k, v := range s.info {
		resp[k] = v
	}
	for k, fn := range s.status {
		resp[k] = fn()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.svc.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authority":      stats.Authority,
		"total_channels": stats.TotalChannels,
		"total_volume":   stats.TotalVolume,
		"display_volume": s.denom.Format(stats.TotalVolume),
	})
}

func (s *Server) listEvents(c *gin.Context) {
	after, err := queryUint(c, "after", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, err := queryUint(c, "limit", DefaultMaxEvents)
	if err != nil {
		s.fail(c, err)
		return
	}
	if limit == 0 || limit > DefaultMaxEvents {
		limit = DefaultMaxEvents
	}
	events, err := s.svc.Events(c.Request.Context(), after, int(limit))
	if err != nil {
		s.fail(c, err)
		return
	}
	last := after
	if n := len(events); n > 0 {
		last = events[n-1].Seq
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "last": last})
}

func queryUint(c *gin.Context, name string, def uint64) (uint64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInput, "%s must be a non negative number", name)
	}
	return v, nil
}

func pathAddress(c *gin.Context) (microchan.Address, error) {
	addr, err := microchan.ParseAddress(c.Param("address"))
	if err != nil {
		return nil, err
	}
	return addr, addr.Validate()
}

type keyRequest struct {
	Pubkey crypto.PublicKey `json:"pubkey"`
}

func (s *Server) registerKey(c *gin.Context) {
	var req keyRequest
	if !s.bind(c, &req) {
		return
	}
	addr, err := s.keys.Register(req.Pubkey)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"address": addr, "pubkey": req.Pubkey})
}

func (s *Server) getKey(c *gin.Context) {
	addr, err := pathAddress(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	pub, err := s.keys.Key(addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "pubkey": pub})
}

func (s *Server) getWallet(c *gin.Context) {
	addr, err := pathAddress(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	balance, err := s.wallets.Balance(addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address": addr,
		"balance": balance,
		"display": s.denom.Format(balance),
	})
}

type createRequest struct {
	ID             string            `json:"id"`
	Payer          microchan.Address `json:"payer"`
	Provider       microchan.Address `json:"provider"`
	InitialDeposit uint64            `json:"initial_deposit"`
	Duration       int64             `json:"duration"`
	Memo           string            `json:"memo"`
	Signature      Hex               `json:"signature"`
}

func (s *Server) createChannel(c *gin.Context) {
	var req createRequest
	if !s.bind(c, &req) {
		return
	}
	ch, err := s.svc.Create(c.Request.Context(), &paychan.CreateMsg{
		ID:             req.ID,
		Payer:          req.Payer,
		Provider:       req.Provider,
		InitialDeposit: req.InitialDeposit,
		Duration:       req.Duration,
		Memo:           req.Memo,
		Signature:      req.Signature,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.viewChannel(ch))
}

func (s *Server) getChannel(c *gin.Context) {
	ch, err := s.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.viewChannel(ch))
}

type paymentRequest struct {
	Amount    uint64      `json:"amount"`
	Service   serviceBody `json:"service"`
	Signature Hex         `json:"signature"`
}

func (s *Server) makePayment(c *gin.Context) {
	var req paymentRequest
	if !s.bind(c, &req) {
		return
	}
	p, err := s.svc.MakePayment(c.Request.Context(), &paychan.PaymentMsg{
		ChannelID: c.Param("id"),
		Amount:    req.Amount,
		Service:   req.Service.model(),
		Signature: req.Signature,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.viewPayment(p))
}

func (s *Server) listPayments(c *gin.Context) {
	payments, err := s.svc.Payments(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, s.viewPayment(p))
	}
	c.JSON(http.StatusOK, gin.H{"payments": views})
}

func (s *Server) getPayment(c *gin.Context) {
	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil {
		s.fail(c, errors.Wrap(errors.ErrInput, "sequence must be a number"))
		return
	}
	p, err := s.svc.Payment(c.Request.Context(), paychan.PaymentID(c.Param("id"), seq))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.viewPayment(p))
}

type updateRequest struct {
	NewBalance        uint64 `json:"new_balance"`
	Sequence          uint64 `json:"sequence"`
	PayerSignature    Hex    `json:"payer_signature"`
	ProviderSignature Hex    `json:"provider_signature"`
}

func (s *Server) updateChannel(c *gin.Context) {
	var req updateRequest
	if !s.bind(c, &req) {
		return
	}
	ch, err := s.svc.UpdateChannel(c.Request.Context(), &paychan.UpdateMsg{
		ChannelID:         c.Param("id"),
		NewBalance:        req.NewBalance,
		Sequence:          req.Sequence,
		PayerSignature:    req.PayerSignature,
		ProviderSignature: req.ProviderSignature,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.viewChannel(ch))
}

type finalBody struct {
	PayerSignature    Hex `json:"payer_signature"`
	ProviderSignature Hex `json:"provider_signature"`
}

type closeRequest struct {
	Closer    microchan.Address `json:"closer"`
	Signature Hex               `json:"signature"`
	Final     *finalBody        `json:"final,omitempty"`
}

func (s *Server) closeChannel(c *gin.Context) {
	var req closeRequest
	if !s.bind(c, &req) {
		return
	}
	msg := &paychan.CloseMsg{
		ChannelID: c.Param("id"),
		Closer:    req.Closer,
		Signature: req.Signature,
	}
	if req.Final != nil {
		msg.Final = &paychan.FinalState{
			PayerSignature:    req.Final.PayerSignature,
			ProviderSignature: req.Final.ProviderSignature,
		}
	}
	ch, err := s.svc.Close(c.Request.Context(), msg)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.viewChannel(ch))
}

type challengeRequest struct {
	Sequence          uint64 `json:"sequence"`
	Balance           uint64 `json:"balance"`
	PayerSignature    Hex    `json:"payer_signature"`
	ProviderSignature Hex    `json:"provider_signature"`
}

func (s *Server) challengeClose(c *gin.Context) {
	var req challengeRequest
	if !s.bind(c, &req) {
		return
	}
	ch, err := s.svc.ChallengeClose(c.Request.Context(), &paychan.ChallengeMsg{
		ChannelID:         c.Param("id"),
		Sequence:          req.Sequence,
		Balance:           req.Balance,
		PayerSignature:    req.PayerSignature,
		ProviderSignature: req.ProviderSignature,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.viewChannel(ch))
}

func (s *Server) finalizeClose(c *gin.Context) {
	ch, err := s.svc.FinalizeClose(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.viewChannel(ch))
}

type evidenceBody struct {
	Type        paychan.EvidenceType `json:"type"`
	Description string               `json:"description"`
	Data        Hex                  `json:"data"`
	DataHash    Hex                  `json:"data_hash"`
}

type disputeRequest struct {
	PaymentID string            `json:"payment_id"`
	Filer     microchan.Address `json:"filer"`
	Evidence  evidenceBody      `json:"evidence"`
	Signature Hex               `json:"signature"`
}

func (s *Server) disputeTransaction(c *gin.Context) {
	var req disputeRequest
	if !s.bind(c, &req) {
		return
	}
	d, err := s.svc.DisputeTransaction(c.Request.Context(), &paychan.DisputeMsg{
		ChannelID: c.Param("id"),
		PaymentID: req.PaymentID,
		Filer:     req.Filer,
		Evidence: paychan.EvidenceInput{
			Type:        req.Evidence.Type,
			Description: req.Evidence.Description,
			Data:        req.Evidence.Data,
			DataHash:    req.Evidence.DataHash,
		},
		Signature: req.Signature,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewDispute(d))
}

type resolveRequest struct {
	Authority microchan.Address `json:"authority"`
	Outcome   paychan.Outcome   `json:"outcome"`
	Amount    uint64            `json:"amount"`
	Reasoning string            `json:"reasoning"`
	Signature Hex               `json:"signature"`
}

func (s *Server) resolveDispute(c *gin.Context) {
	var req resolveRequest
	if !s.bind(c, &req) {
		return
	}
	d, err := s.svc.ResolveDispute(c.Request.Context(), &paychan.ResolveMsg{
		ChannelID: c.Param("id"),
		Authority: req.Authority,
		Outcome:   req.Outcome,
		Amount:    req.Amount,
		Reasoning: req.Reasoning,
		Signature: req.Signature,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewDispute(d))
}

func (s *Server) listDisputes(c *gin.Context) {
	disputes, err := s.svc.Disputes(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]disputeView, 0, len(disputes))
	for _, d := range disputes {
		views = append(views, viewDispute(d))
	}
	c.JSON(http.StatusOK, gin.H{"disputes": views})
}

func (s *Server) getDispute(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("dispute"), 10, 64)
	if err != nil || id <= 0 {
		s.fail(c, errors.Wrap(errors.ErrInput, "dispute id must be a positive number"))
		return
	}
	d, err := s.svc.Dispute(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewDispute(d))
}
