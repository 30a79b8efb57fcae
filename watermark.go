package slotindex

const (
	fenceInput  = "input"
	fenceOutput = "output"
)

// ReportChannelWatermark records that channel will not deliver anything older than ts
// and recomputes the input fence.
//
// A report below the channel's stored watermark is a contract violation by the producer:
// it is logged at Warn, reported to OnWatermarkRegression and the metrics, and has no
// effect on any state. A recomputed fence below the current one is an internal fault:
// it is logged at Error, reported to OnFenceRegression, and the current fence is kept.
//
// Only data channels take part in the minimum. An auxiliary channel's report is
// stored but moves the fence only when the roster has no data channel at all.
//
// Parameters:
//   - ts: Oldest timeslice the channel may still deliver
//   - channel: Reporting channel; panics with ErrChannelOutOfRange when outside the roster
//
// Returns:
//   - OldestInputInfo: Current input fence and the channel limiting it
func (idx *Index) ReportChannelWatermark(ts TimesliceID, channel ChannelIndex) OldestInputInfo {
	idx.checkChannel(channel)

	ch := &idx.channels[channel]
	if ts < ch.OldestForChannel {
		idx.logger.Warn("channel watermark regression rejected",
			"channel", ch.Name,
			"channelIndex", channel,
			"reported", ts,
			"stored", ch.OldestForChannel,
		)
		idx.metrics.RecordWatermarkRegression(ch.Name)
		idx.hooks.OnWatermarkRegression(channel, ts, ch.OldestForChannel)

		return idx.oldestInput
	}
	ch.OldestForChannel = ts

	computed := OldestInputInfo{Timeslice: InvalidTimeslice, Channel: InvalidChannel}
	if ch.IsData() || !idx.hasData {
		computed = OldestInputInfo{Timeslice: ts, Channel: channel}
	}
	for i := range idx.channels {
		if !idx.channels[i].IsData() {
			continue
		}
		if oldest := idx.channels[i].OldestForChannel; oldest < computed.Timeslice {
			computed = OldestInputInfo{Timeslice: oldest, Channel: ChannelIndex(i)}
		}
	}

	previous := idx.oldestInput
	switch {
	case computed.Timeslice < previous.Timeslice:
		idx.logger.Error("oldest possible input would decrease, keeping previous fence",
			"channel", ch.Name,
			"previous", previous.Timeslice,
			"computed", computed.Timeslice,
		)
		idx.metrics.RecordFenceRegression(fenceInput)
		idx.hooks.OnFenceRegression(fenceInput, previous.Timeslice, computed.Timeslice)
	case computed.Timeslice != previous.Timeslice:
		idx.logger.Debug("oldest possible input advanced",
			"from", previous.Timeslice,
			"to", computed.Timeslice,
			"limitedBy", computed.Channel,
		)
		idx.oldestInput = computed
	default:
		idx.oldestInput.Channel = computed.Channel
	}

	idx.metrics.RecordOldestPossibleInput(idx.oldestInput.Timeslice)
	idx.hooks.OnWatermark(channel, idx.oldestInput)

	return idx.oldestInput
}

// UpdateOldestPossibleOutput recomputes the output fence as the minimum of the input
// fence and every occupied slot's timeslice.
//
// The fence never decreases: a recomputed value below the current one (for instance after
// admitting a late timeslice) is logged at Error, reported to OnFenceRegression, and the
// current fence is kept. Calling it repeatedly without intervening changes is a no-op.
//
// Returns:
//   - OldestOutputInfo: Current output fence and the slot or channel limiting it
func (idx *Index) UpdateOldestPossibleOutput() OldestOutputInfo {
	computed := OldestOutputInfo{
		Timeslice: idx.oldestInput.Timeslice,
		Channel:   idx.oldestInput.Channel,
		Slot:      InvalidSlot,
	}

	occupied := 0
	for i := range idx.slots {
		ts, ok := idx.slots[i].vars.Timeslice()
		if !ok {
			continue
		}
		occupied++
		if ts < computed.Timeslice {
			computed = OldestOutputInfo{Timeslice: ts, Channel: InvalidChannel, Slot: SlotIndex(i)}
		}
	}
	idx.metrics.RecordOccupiedSlots(occupied)

	previous := idx.oldestOutput
	if computed.Timeslice < previous.Timeslice {
		idx.logger.Error("oldest possible output would decrease, keeping previous fence",
			"previous", previous.Timeslice,
			"computed", computed.Timeslice,
			"slot", computed.Slot,
			"channel", computed.Channel,
		)
		idx.metrics.RecordFenceRegression(fenceOutput)
		idx.hooks.OnFenceRegression(fenceOutput, previous.Timeslice, computed.Timeslice)
	} else {
		if computed.Timeslice != previous.Timeslice {
			idx.logger.Debug("oldest possible output advanced",
				"from", previous.Timeslice,
				"to", computed.Timeslice,
				"limitedBySlot", computed.LimitedBySlot(),
			)
		}
		idx.oldestOutput = computed
	}

	idx.metrics.RecordOldestPossibleOutput(idx.oldestOutput.Timeslice)
	idx.hooks.OnOutputFence(idx.oldestOutput)

	return idx.oldestOutput
}

// OldestPossibleInput returns the current input fence.
func (idx *Index) OldestPossibleInput() OldestInputInfo {
	return idx.oldestInput
}

// OldestPossibleOutput returns the output fence as of the last UpdateOldestPossibleOutput.
func (idx *Index) OldestPossibleOutput() OldestOutputInfo {
	return idx.oldestOutput
}

// ValidateSlot lazily invalidates a slot whose content fell behind the input fence.
//
// A dirty slot is trusted without a check. Otherwise a slot holding a timeslice strictly
// below the input fence is marked invalid and false is returned.
//
// The second argument is accepted for call-site compatibility and ignored; the
// comparison always uses the index's own input fence.
//
// Returns:
//   - bool: false when the slot was invalidated
func (idx *Index) ValidateSlot(s SlotIndex, _ TimesliceID) bool {
	idx.checkSlot(s)

	sl := &idx.slots[s]
	if sl.dirty {
		return true
	}

	ts, ok := sl.vars.Timeslice()
	if ok && ts < idx.oldestInput.Timeslice {
		idx.MarkInvalid(s)
		idx.metrics.RecordSlotInvalidated()
		idx.hooks.OnSlotInvalidated(s, ts)
		idx.logger.Debug("slot invalidated",
			"slot", s,
			"timeslice", ts,
			"oldestPossibleInput", idx.oldestInput.Timeslice,
		)

		return false
	}

	return true
}

// DidReceiveData reports whether the pipeline has left its initial waiting state:
// true when the roster has no data channel, or when any data channel reported a
// non-zero watermark.
func (idx *Index) DidReceiveData() bool {
	if !idx.hasData {
		return true
	}
	for i := range idx.channels {
		if idx.channels[i].IsData() && idx.channels[i].OldestForChannel != 0 {
			return true
		}
	}

	return false
}
