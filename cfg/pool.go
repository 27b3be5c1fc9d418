package cfg

const nodePoolPageSize = 128

// nodePool hands out Nodes from fixed-size pages. Pages never move, so a *Node stays valid
// for the lifetime of the Kernel regardless of later insertions. Nodes are never freed:
// instructions can be inserted into a Kernel but not removed.
type nodePool struct {
	pages []*[nodePoolPageSize]Node
	// used is the number of nodes handed out from the last page.
	used int
	// count is the number of nodes handed out in total.
	count int
}

func (p *nodePool) allocate() *Node {
	if len(p.pages) == 0 || p.used == nodePoolPageSize {
		p.pages = append(p.pages, new([nodePoolPageSize]Node))
		p.used = 0
	}
	ret := &p.pages[len(p.pages)-1][p.used]
	p.used++
	p.count++
	return ret
}
