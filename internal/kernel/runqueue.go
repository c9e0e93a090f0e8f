package kernel

// enqueue links thread i into the run-queue ring just before the head, so
// that it is the last to run in the current rotation. An empty queue
// makes i the head.
func (k *Kernel) enqueue(i int) {
	t := &k.tcbs[i]
	if k.head == NoThread {
		t.prev, t.next = i, i
		k.head = i
		return
	}
	h := &k.tcbs[k.head]
	t.next = k.head
	t.prev = h.prev
	k.tcbs[h.prev].next = i
	h.prev = i
}

// dequeue unlinks thread i from the run-queue. Removing the head moves the
// head to its successor.
func (k *Kernel) dequeue(i int) {
	t := &k.tcbs[i]
	if t.next == NoThread {
		return
	}
	if t.next == i {
		k.head = NoThread
	} else {
		k.tcbs[t.prev].next = t.next
		k.tcbs[t.next].prev = t.prev
		if k.head == i {
			k.head = t.next
		}
	}
	t.prev, t.next = NoThread, NoThread
}

// queued reports whether thread i is linked into the run-queue.
func (k *Kernel) queued(i int) bool { return k.tcbs[i].next != NoThread }

// RunQueue returns the run-queue starting at the head.
func (k *Kernel) RunQueue() []int {
	if k.head == NoThread {
		return nil
	}
	var out []int
	for i, n := k.head, 0; n < MaxThreads; n++ {
		out = append(out, i)
		i = k.tcbs[i].next
		if i == k.head {
			break
		}
	}
	return out
}

// freeSlot returns the lowest terminated thread slot.
func (k *Kernel) freeSlot() int {
	for i := range k.tcbs {
		if k.tcbs[i].state == Terminated {
			return i
		}
	}
	return NoThread
}
