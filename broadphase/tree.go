package broadphase

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

type treeNode struct {
	// Enlarged AABB for leaves
	aabb    actor.AABB
	payload int

	// parent, or next free node while in the free list
	parent int
	child1 int
	child2 int

	// leaf = 0, free node = -1
	height int
}

func (n *treeNode) isLeaf() bool {
	return n.child1 == NullProxy
}

// DynamicTree is a bounding volume hierarchy of fat AABBs.
// Leaves are proxies; a proxy is only reinserted when its tight AABB leaves its fat AABB.
// Nodes are pooled in a slice and addressed by index.
type DynamicTree struct {
	root      int
	nodes     []treeNode
	nodeCount int
	freeList  int

	margin                 float64
	displacementMultiplier float64

	stack []int
}

// NewDynamicTree creates an empty tree. margin fattens every proxy, the predicted displacement
// is scaled by displacementMultiplier.
func NewDynamicTree(margin float64, displacementMultiplier float64) *DynamicTree {
	tree := &DynamicTree{
		root:                   NullProxy,
		freeList:               NullProxy,
		margin:                 margin,
		displacementMultiplier: displacementMultiplier,
		stack:                  make([]int, 0, 64),
	}
	tree.grow(16)

	return tree
}

// grow extends the node pool and chains the new nodes in the free list
func (tree *DynamicTree) grow(capacity int) {
	start := len(tree.nodes)
	tree.nodes = append(tree.nodes, make([]treeNode, capacity-start)...)

	for i := start; i < capacity-1; i++ {
		tree.nodes[i].parent = i + 1
		tree.nodes[i].height = -1
	}
	tree.nodes[capacity-1].parent = tree.freeList
	tree.nodes[capacity-1].height = -1
	tree.freeList = start
}

func (tree *DynamicTree) allocateNode() int {
	if tree.freeList == NullProxy {
		tree.grow(len(tree.nodes) * 2)
	}

	id := tree.freeList
	node := &tree.nodes[id]
	tree.freeList = node.parent
	*node = treeNode{parent: NullProxy, child1: NullProxy, child2: NullProxy, payload: -1}
	tree.nodeCount++

	return id
}

func (tree *DynamicTree) freeNode(id int) {
	tree.nodes[id].parent = tree.freeList
	tree.nodes[id].height = -1
	tree.freeList = id
	tree.nodeCount--
}

func (tree *DynamicTree) AddObject(aabb actor.AABB, payload int) int {
	id := tree.allocateNode()
	tree.nodes[id].aabb = aabb.Fatten(tree.margin)
	tree.nodes[id].payload = payload
	tree.insertLeaf(id)

	return id
}

func (tree *DynamicTree) RemoveObject(proxyID int) {
	tree.removeLeaf(proxyID)
	tree.freeNode(proxyID)
}

func (tree *DynamicTree) UpdateObject(proxyID int, aabb actor.AABB, displacement mgl64.Vec3, forceReinsert bool) bool {
	if !forceReinsert && tree.nodes[proxyID].aabb.Contains(aabb) {
		return false
	}

	tree.removeLeaf(proxyID)
	tree.nodes[proxyID].aabb = fatten(aabb, tree.margin, displacement, tree.displacementMultiplier)
	tree.insertLeaf(proxyID)

	return true
}

func (tree *DynamicTree) FatAABB(proxyID int) actor.AABB {
	return tree.nodes[proxyID].aabb
}

func (tree *DynamicTree) Payload(proxyID int) int {
	return tree.nodes[proxyID].payload
}

// ProxyCount returns the number of leaves
func (tree *DynamicTree) ProxyCount() int {
	// a tree with n leaves has n-1 internal nodes
	if tree.nodeCount == 0 {
		return 0
	}
	return (tree.nodeCount + 1) / 2
}

// Height returns the height of the root, 0 for an empty tree
func (tree *DynamicTree) Height() int {
	if tree.root == NullProxy {
		return 0
	}
	return tree.nodes[tree.root].height
}

func (tree *DynamicTree) Query(aabb actor.AABB, callback QueryCallback) {
	stack := append(tree.stack[:0], tree.root)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == NullProxy {
			continue
		}

		node := &tree.nodes[id]
		if !node.aabb.Overlaps(aabb) {
			continue
		}

		if node.isLeaf() {
			if !callback(id) {
				break
			}
		} else {
			stack = append(stack, node.child1, node.child2)
		}
	}

	tree.stack = stack[:0]
}

func (tree *DynamicTree) Raycast(ray actor.Ray, callback RaycastCallback) {
	maxFraction := ray.MaxFraction
	stack := append(tree.stack[:0], tree.root)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == NullProxy {
			continue
		}

		node := &tree.nodes[id]
		if _, hit := node.aabb.RayIntersect(ray.Point1, ray.Point2, maxFraction); !hit {
			continue
		}

		if !node.isLeaf() {
			stack = append(stack, node.child1, node.child2)
			continue
		}

		value := callback(actor.Ray{Point1: ray.Point1, Point2: ray.Point2, MaxFraction: maxFraction}, id)
		if value == 0 {
			// The client has terminated the ray cast.
			break
		}
		if value > 0 {
			maxFraction = value
		}
	}

	tree.stack = stack[:0]
}

func (tree *DynamicTree) insertLeaf(leaf int) {
	if tree.root == NullProxy {
		tree.root = leaf
		tree.nodes[leaf].parent = NullProxy
		return
	}

	// Find the best sibling for this node
	leafAABB := tree.nodes[leaf].aabb
	index := tree.root
	for !tree.nodes[index].isLeaf() {
		child1 := tree.nodes[index].child1
		child2 := tree.nodes[index].child2

		area := tree.nodes[index].aabb.SurfaceArea()
		combinedArea := tree.nodes[index].aabb.Merge(leafAABB).SurfaceArea()

		// Cost of creating a new parent for this node and the new leaf
		cost := 2.0 * combinedArea
		// Minimum cost of pushing the leaf further down the tree
		inheritanceCost := 2.0 * (combinedArea - area)

		cost1 := tree.descendCost(child1, leafAABB) + inheritanceCost
		cost2 := tree.descendCost(child2, leafAABB) + inheritanceCost

		if cost < cost1 && cost < cost2 {
			break
		}

		if cost1 < cost2 {
			index = child1
		} else {
			index = child2
		}
	}

	sibling := index

	// Create a new parent.
	oldParent := tree.nodes[sibling].parent
	newParent := tree.allocateNode()
	tree.nodes[newParent].parent = oldParent
	tree.nodes[newParent].aabb = leafAABB.Merge(tree.nodes[sibling].aabb)
	tree.nodes[newParent].height = tree.nodes[sibling].height + 1
	tree.nodes[newParent].child1 = sibling
	tree.nodes[newParent].child2 = leaf
	tree.nodes[sibling].parent = newParent
	tree.nodes[leaf].parent = newParent

	if oldParent != NullProxy {
		if tree.nodes[oldParent].child1 == sibling {
			tree.nodes[oldParent].child1 = newParent
		} else {
			tree.nodes[oldParent].child2 = newParent
		}
	} else {
		tree.root = newParent
	}

	// Walk back up the tree fixing heights and AABBs
	tree.refit(tree.nodes[leaf].parent)
}

func (tree *DynamicTree) descendCost(child int, leafAABB actor.AABB) float64 {
	merged := leafAABB.Merge(tree.nodes[child].aabb).SurfaceArea()
	if tree.nodes[child].isLeaf() {
		return merged
	}
	return merged - tree.nodes[child].aabb.SurfaceArea()
}

func (tree *DynamicTree) removeLeaf(leaf int) {
	if leaf == tree.root {
		tree.root = NullProxy
		return
	}

	parent := tree.nodes[leaf].parent
	grandParent := tree.nodes[parent].parent
	sibling := tree.nodes[parent].child1
	if sibling == leaf {
		sibling = tree.nodes[parent].child2
	}

	if grandParent == NullProxy {
		tree.root = sibling
		tree.nodes[sibling].parent = NullProxy
		tree.freeNode(parent)
		return
	}

	// Destroy parent and connect sibling to grandParent.
	if tree.nodes[grandParent].child1 == parent {
		tree.nodes[grandParent].child1 = sibling
	} else {
		tree.nodes[grandParent].child2 = sibling
	}
	tree.nodes[sibling].parent = grandParent
	tree.freeNode(parent)

	tree.refit(grandParent)
}

func (tree *DynamicTree) refit(index int) {
	for index != NullProxy {
		index = tree.balance(index)

		child1 := tree.nodes[index].child1
		child2 := tree.nodes[index].child2

		tree.nodes[index].height = 1 + max(tree.nodes[child1].height, tree.nodes[child2].height)
		tree.nodes[index].aabb = tree.nodes[child1].aabb.Merge(tree.nodes[child2].aabb)

		index = tree.nodes[index].parent
	}
}

// balance performs a left or right rotation if node iA is imbalanced.
// Returns the new root index of the subtree.
func (tree *DynamicTree) balance(iA int) int {
	A := &tree.nodes[iA]
	if A.isLeaf() || A.height < 2 {
		return iA
	}

	iB := A.child1
	iC := A.child2
	B := &tree.nodes[iB]
	C := &tree.nodes[iC]

	balance := C.height - B.height

	// Rotate C up
	if balance > 1 {
		iF := C.child1
		iG := C.child2
		F := &tree.nodes[iF]
		G := &tree.nodes[iG]

		// Swap A and C
		C.child1 = iA
		C.parent = A.parent
		A.parent = iC
		tree.replaceChild(C.parent, iA, iC)

		// Rotate
		if F.height > G.height {
			C.child2 = iF
			A.child2 = iG
			G.parent = iA
			A.aabb = B.aabb.Merge(G.aabb)
			C.aabb = A.aabb.Merge(F.aabb)

			A.height = 1 + max(B.height, G.height)
			C.height = 1 + max(A.height, F.height)
		} else {
			C.child2 = iG
			A.child2 = iF
			F.parent = iA
			A.aabb = B.aabb.Merge(F.aabb)
			C.aabb = A.aabb.Merge(G.aabb)

			A.height = 1 + max(B.height, F.height)
			C.height = 1 + max(A.height, G.height)
		}

		return iC
	}

	// Rotate B up
	if balance < -1 {
		iD := B.child1
		iE := B.child2
		D := &tree.nodes[iD]
		E := &tree.nodes[iE]

		// Swap A and B
		B.child1 = iA
		B.parent = A.parent
		A.parent = iB
		tree.replaceChild(B.parent, iA, iB)

		// Rotate
		if D.height > E.height {
			B.child2 = iD
			A.child1 = iE
			E.parent = iA
			A.aabb = C.aabb.Merge(E.aabb)
			B.aabb = A.aabb.Merge(D.aabb)

			A.height = 1 + max(C.height, E.height)
			B.height = 1 + max(A.height, D.height)
		} else {
			B.child2 = iE
			A.child1 = iD
			D.parent = iA
			A.aabb = C.aabb.Merge(D.aabb)
			B.aabb = A.aabb.Merge(E.aabb)

			A.height = 1 + max(C.height, D.height)
			B.height = 1 + max(A.height, E.height)
		}

		return iB
	}

	return iA
}

// replaceChild points parent to newChild instead of oldChild, or makes newChild the root
func (tree *DynamicTree) replaceChild(parent, oldChild, newChild int) {
	if parent == NullProxy {
		tree.root = newChild
		return
	}
	if tree.nodes[parent].child1 == oldChild {
		tree.nodes[parent].child1 = newChild
	} else {
		tree.nodes[parent].child2 = newChild
	}
}

// validate checks parent links and heights, used by tests
func (tree *DynamicTree) validate(index int) bool {
	if index == NullProxy {
		return true
	}
	node := &tree.nodes[index]
	if node.isLeaf() {
		return node.child2 == NullProxy && node.height == 0
	}
	if tree.nodes[node.child1].parent != index || tree.nodes[node.child2].parent != index {
		return false
	}
	if node.height != 1+max(tree.nodes[node.child1].height, tree.nodes[node.child2].height) {
		return false
	}
	if !node.aabb.Contains(tree.nodes[node.child1].aabb) || !node.aabb.Contains(tree.nodes[node.child2].aabb) {
		return false
	}
	return tree.validate(node.child1) && tree.validate(node.child2)
}
