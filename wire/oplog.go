package wire

import (
	"fmt"

	"github.com/cshekharsharma/cascade/internal/wireutil"
	"github.com/cshekharsharma/cascade/model"
)

// Reserved wire tags: ObjRef 0=Root, 1=Object; Selector 0=Key,
// 1=Index; Value 1=String, 2=Int, 3=Double, 4=Bool, 5=Object. Action
// tags are model.ActionKind's own values, numbered 1..6.
const (
	objRefRootTag   = 0
	objRefObjectTag = 1

	selectorKeyTag   = 0
	selectorIndexTag = 1

	valueStringTag = 1
	valueIntTag    = 2
	valueDoubleTag = 3
	valueBoolTag   = 4
	valueObjectTag = 5
)

// SerializationError reports a malformed operation log buffer.
type SerializationError struct {
	Detail string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("wire: malformed operation log buffer: %s", e.Detail)
}

func malformedf(format string, args ...any) error {
	return &SerializationError{Detail: fmt.Sprintf(format, args...)}
}

// opColumns is the transposed, per-field view of a slice of
// operations, built by walking them once in a fixed traversal order
// that EncodeOperations and DecodeOperations both follow: envelope
// fields first (one entry per operation), then each action's payload
// fields in the order its kind defines them. Columns that are only
// meaningful for some operations (a Selector, a Value, a text Left
// pointer) are packed densely — one entry per op that actually has
// that field, not one per op overall — and decoding recovers which
// entries belong to which op purely from the already-decoded
// action-type and per-field presence columns.
type opColumns struct {
	actionType   []uint64
	idClient     []uint64
	idSequence   []uint64
	hasParent    []uint64
	parentClient []uint64
	parentSeq    []uint64
	timestamp    []uint64

	refType   []uint64 // one per op: the Object field's ObjRef tag
	refClient []uint64 // one per non-root Object ref, in traversal order
	refSeq    []uint64

	selectorType    []uint64 // one per op with a Selector
	selectorKeys    []string // one per key selector, in traversal order
	selectorIndices []uint64 // one per index selector, in traversal order

	// blockClient/blockSeq hold every MapBlockID/SequenceBlockID of
	// block-id shape encountered: an action's own ID field (if it has
	// one) first, then each of its Parents, in traversal order.
	// parentCount records how many Parents entries follow the ID for
	// every op that carries a Parents list.
	blockClient []uint64
	blockSeq    []uint64
	parentCount []uint64

	hasLeft         []uint64 // one per InsertText op
	leftRightClient []uint64 // InsertText's optional Left, then DeleteText's Left and Right
	leftRightSeq    []uint64

	textContent []string // one per InsertText op, in order

	valueType      []uint64 // one per SetMapValue op
	valueStrings   []string
	valueInts      []uint64
	valueDoubles   []uint64
	valueBools     []uint64
	valueRefClient []uint64
	valueRefSeq    []uint64
}

// actionObject returns the ObjRef every action kind carries under its
// Object field.
func actionObject(action model.Action) model.ObjRef {
	switch a := action.(type) {
	case *model.CreateMapAction:
		return a.Object
	case *model.SetMapValueAction:
		return a.Object
	case *model.DeleteMapValueAction:
		return a.Object
	case *model.CreateTextAction:
		return a.Object
	case *model.InsertTextAction:
		return a.Object
	case *model.DeleteTextAction:
		return a.Object
	default:
		return model.ObjRef{}
	}
}

// EncodeOperations transposes ops into columns and serializes each
// with the compression strategy matching its distribution, producing
// the operation log region of the document buffer. Operations are
// encoded in the order given; the document façade passes them in the
// deterministic sorted order so equal operation sets serialize to
// equal bytes, which also keeps same-client runs adjacent for the run
// and monotonic compressors.
func EncodeOperations(ops []model.Operation) []byte {
	c := &opColumns{}

	for _, op := range ops {
		c.actionType = append(c.actionType, uint64(op.Action.Kind()))
		c.idClient = append(c.idClient, uint64(op.ID.ClientID))
		c.idSequence = append(c.idSequence, uint64(op.ID.Sequence))
		c.timestamp = append(c.timestamp, uint64(op.Timestamp))

		if op.Parent != nil {
			c.hasParent = append(c.hasParent, 1)
			c.parentClient = append(c.parentClient, uint64(op.Parent.ClientID))
			c.parentSeq = append(c.parentSeq, uint64(op.Parent.Sequence))
		} else {
			c.hasParent = append(c.hasParent, 0)
			c.parentClient = append(c.parentClient, 0)
			c.parentSeq = append(c.parentSeq, 0)
		}

		ref := actionObject(op.Action)
		if ref.Root {
			c.refType = append(c.refType, objRefRootTag)
		} else {
			c.refType = append(c.refType, objRefObjectTag)
			c.refClient = append(c.refClient, uint64(ref.ID.ClientID))
			c.refSeq = append(c.refSeq, uint64(ref.ID.Sequence))
		}

		encodeAction(c, op.Action)
	}

	buf := wireutil.AppendUvarint(nil, uint64(len(ops)))
	buf = appendColumn(buf, EncodeRunLength(c.actionType))
	buf = appendColumn(buf, EncodeRunLength(c.idClient))
	buf = appendColumn(buf, EncodeMonotonicRun(c.idSequence))
	buf = appendColumn(buf, EncodeRunLength(c.hasParent))
	buf = appendColumn(buf, EncodeRunLength(c.parentClient))
	buf = appendColumn(buf, EncodeMonotonicRun(c.parentSeq))
	buf = appendColumn(buf, EncodeDelta(c.timestamp))
	buf = appendColumn(buf, EncodeRunLength(c.refType))
	buf = appendColumn(buf, EncodeRunLength(c.refClient))
	buf = appendColumn(buf, EncodeMonotonicRun(c.refSeq))

	buf = appendCountedU64(buf, uint64(len(c.selectorType)))
	buf = appendColumn(buf, EncodeRunLength(c.selectorType))
	buf = appendStringArena(buf, c.selectorKeys)
	buf = appendPlainVarints(buf, c.selectorIndices)

	// parentCount is written before blockClient/blockSeq because the
	// latter's total length (one entry per ID-bearing op, plus every
	// flattened Parents entry) cannot be known on decode until the
	// parent counts have already been read.
	buf = appendPlainVarints(buf, c.parentCount)
	buf = appendColumn(buf, EncodeRunLength(c.blockClient))
	buf = appendColumn(buf, EncodeMonotonicRun(c.blockSeq))

	buf = appendColumn(buf, EncodeRunLength(c.hasLeft))
	buf = appendColumn(buf, EncodeRunLength(c.leftRightClient))
	buf = appendColumn(buf, EncodeTwoWayMonotonicRun(c.leftRightSeq))
	buf = appendStringArena(buf, c.textContent)

	buf = appendCountedU64(buf, uint64(len(c.valueType)))
	buf = appendColumn(buf, EncodeRunLength(c.valueType))
	buf = appendStringArena(buf, c.valueStrings)
	buf = appendPlainVarints(buf, c.valueInts)
	buf = appendPlainU64s(buf, c.valueDoubles)
	buf = appendColumn(buf, EncodeRunLength(c.valueBools))
	buf = appendColumn(buf, EncodeRunLength(c.valueRefClient))
	buf = appendColumn(buf, EncodeMonotonicRun(c.valueRefSeq))

	return buf
}

func encodeAction(c *opColumns, action model.Action) {
	switch a := action.(type) {
	case *model.CreateMapAction:
		encodeSelector(c, a.Selector)
		encodeBlockID(c, a.ID)
		encodeParents(c, a.Parents)

	case *model.SetMapValueAction:
		encodeSelector(c, a.Selector)
		encodeBlockID(c, a.ID)
		encodeParents(c, a.Parents)
		encodeValue(c, a.Value)

	case *model.DeleteMapValueAction:
		encodeSelector(c, a.Selector)
		encodeParents(c, a.Parents)

	case *model.CreateTextAction:
		encodeSelector(c, a.Selector)
		encodeBlockID(c, a.ID)
		encodeParents(c, a.Parents)

	case *model.InsertTextAction:
		encodeSequenceBlockID(c, a.ID)
		if a.Left != nil {
			c.hasLeft = append(c.hasLeft, 1)
			c.leftRightClient = append(c.leftRightClient, uint64(a.Left.ClientID))
			c.leftRightSeq = append(c.leftRightSeq, uint64(a.Left.Sequence))
		} else {
			c.hasLeft = append(c.hasLeft, 0)
		}
		c.textContent = append(c.textContent, a.Value)

	case *model.DeleteTextAction:
		c.leftRightClient = append(c.leftRightClient, uint64(a.Left.ClientID), uint64(a.Right.ClientID))
		c.leftRightSeq = append(c.leftRightSeq, uint64(a.Left.Sequence), uint64(a.Right.Sequence))
	}
}

func encodeSelector(c *opColumns, selector model.Selector) {
	if selector.Kind == model.SelectorIndexKind {
		c.selectorType = append(c.selectorType, selectorIndexTag)
		c.selectorIndices = append(c.selectorIndices, uint64(selector.Index))
		return
	}
	c.selectorType = append(c.selectorType, selectorKeyTag)
	c.selectorKeys = append(c.selectorKeys, selector.Key)
}

func encodeBlockID(c *opColumns, id model.MapBlockID) {
	c.blockClient = append(c.blockClient, uint64(id.ClientID))
	c.blockSeq = append(c.blockSeq, uint64(id.Sequence))
}

func encodeSequenceBlockID(c *opColumns, id model.SequenceBlockID) {
	c.blockClient = append(c.blockClient, uint64(id.ClientID))
	c.blockSeq = append(c.blockSeq, uint64(id.Sequence))
}

func encodeParents(c *opColumns, parents []model.MapBlockID) {
	c.parentCount = append(c.parentCount, uint64(len(parents)))
	for _, p := range parents {
		c.blockClient = append(c.blockClient, uint64(p.ClientID))
		c.blockSeq = append(c.blockSeq, uint64(p.Sequence))
	}
}

func encodeValue(c *opColumns, v model.Value) {
	if v.Kind == model.ValueObjectKind {
		c.valueType = append(c.valueType, valueObjectTag)
		c.valueRefClient = append(c.valueRefClient, uint64(v.Object.ID.ClientID))
		c.valueRefSeq = append(c.valueRefSeq, uint64(v.Object.ID.Sequence))
		return
	}
	switch v.Scalar.Kind {
	case model.ScalarString:
		c.valueType = append(c.valueType, valueStringTag)
		c.valueStrings = append(c.valueStrings, v.Scalar.Str)
	case model.ScalarInt:
		c.valueType = append(c.valueType, valueIntTag)
		c.valueInts = append(c.valueInts, zigzag(int64(v.Scalar.Int)))
	case model.ScalarDouble:
		c.valueType = append(c.valueType, valueDoubleTag)
		c.valueDoubles = append(c.valueDoubles, doubleBits(v.Scalar.Double))
	case model.ScalarBool:
		c.valueType = append(c.valueType, valueBoolTag)
		c.valueBools = append(c.valueBools, boolBit(v.Scalar.Bool))
	}
}

// decodedColumns is DecodeOperations' fully-decoded mirror of
// opColumns, read back from the buffer before being woven into
// model.Operation values.
type decodedColumns struct {
	refClient, refSeq                       []uint64
	selectorType                            []uint64
	selectorKeys                            []string
	selectorIndices                         []uint64
	blockClient, blockSeq, parentCount      []uint64
	hasLeft, leftRightClient, leftRightSeq  []uint64
	textContent                             []string
	valueType                               []uint64
	valueStrings                            []string
	valueInts, valueDoubles                 []uint64
	valueBools, valueRefClient, valueRefSeq []uint64
}

// DecodeOperations reverses EncodeOperations.
func DecodeOperations(buf []byte) ([]model.Operation, []byte, error) {
	count, offset, err := wireutil.ReadUvarint(buf)
	if err != nil {
		return nil, nil, malformedf("truncated operation count: %s", err)
	}
	n := int(count)

	actionType, offset, err := readRunLengthColumn(buf, offset, n)
	if err != nil {
		return nil, nil, err
	}
	idClient, offset, err := readRunLengthColumn(buf, offset, n)
	if err != nil {
		return nil, nil, err
	}
	idSequence, offset, err := readMonotonicColumn(buf, offset, n)
	if err != nil {
		return nil, nil, err
	}
	hasParent, offset, err := readRunLengthColumn(buf, offset, n)
	if err != nil {
		return nil, nil, err
	}
	parentClient, offset, err := readRunLengthColumn(buf, offset, n)
	if err != nil {
		return nil, nil, err
	}
	parentSeq, offset, err := readMonotonicColumn(buf, offset, n)
	if err != nil {
		return nil, nil, err
	}
	timestamp, offset, err := readDeltaColumn(buf, offset)
	if err != nil {
		return nil, nil, err
	}
	if len(timestamp) != n {
		return nil, nil, malformedf("timestamp column decoded %d values, want %d", len(timestamp), n)
	}
	refType, offset, err := readRunLengthColumn(buf, offset, n)
	if err != nil {
		return nil, nil, err
	}

	numRefs := countTag(refType, objRefObjectTag)
	d := &decodedColumns{}
	d.refClient, offset, err = readRunLengthColumn(buf, offset, numRefs)
	if err != nil {
		return nil, nil, err
	}
	d.refSeq, offset, err = readMonotonicColumn(buf, offset, numRefs)
	if err != nil {
		return nil, nil, err
	}

	numSelectors, offset, err := readCountedU64(buf, offset)
	if err != nil {
		return nil, nil, err
	}
	d.selectorType, offset, err = readRunLengthColumn(buf, offset, int(numSelectors))
	if err != nil {
		return nil, nil, err
	}
	d.selectorKeys, offset, err = readStringArena(buf, offset, countTag(d.selectorType, selectorKeyTag))
	if err != nil {
		return nil, nil, err
	}
	d.selectorIndices, offset, err = readPlainVarints(buf, offset, countTag(d.selectorType, selectorIndexTag))
	if err != nil {
		return nil, nil, err
	}

	numParentLists := countOpsWithParents(actionType)
	d.parentCount, offset, err = readPlainVarints(buf, offset, numParentLists)
	if err != nil {
		return nil, nil, err
	}
	numBlocks := countOpsWithBlock(actionType) + int(sumUint64(d.parentCount))
	d.blockClient, offset, err = readRunLengthColumn(buf, offset, numBlocks)
	if err != nil {
		return nil, nil, err
	}
	d.blockSeq, offset, err = readMonotonicColumn(buf, offset, numBlocks)
	if err != nil {
		return nil, nil, err
	}

	numInserts := countTag(actionType, uint64(model.ActionInsertText))
	d.hasLeft, offset, err = readRunLengthColumn(buf, offset, numInserts)
	if err != nil {
		return nil, nil, err
	}
	numDeletes := countTag(actionType, uint64(model.ActionDeleteText))
	numLeftRight := int(sumUint64(d.hasLeft)) + 2*numDeletes
	d.leftRightClient, offset, err = readRunLengthColumn(buf, offset, numLeftRight)
	if err != nil {
		return nil, nil, err
	}
	d.leftRightSeq, offset, err = readTwoWayColumn(buf, offset, numLeftRight)
	if err != nil {
		return nil, nil, err
	}
	d.textContent, offset, err = readStringArena(buf, offset, numInserts)
	if err != nil {
		return nil, nil, err
	}

	numValues, offset, err := readCountedU64(buf, offset)
	if err != nil {
		return nil, nil, err
	}
	d.valueType, offset, err = readRunLengthColumn(buf, offset, int(numValues))
	if err != nil {
		return nil, nil, err
	}
	d.valueStrings, offset, err = readStringArena(buf, offset, countTag(d.valueType, valueStringTag))
	if err != nil {
		return nil, nil, err
	}
	d.valueInts, offset, err = readPlainVarints(buf, offset, countTag(d.valueType, valueIntTag))
	if err != nil {
		return nil, nil, err
	}
	d.valueDoubles, offset, err = readPlainU64s(buf, offset, countTag(d.valueType, valueDoubleTag))
	if err != nil {
		return nil, nil, err
	}
	d.valueBools, offset, err = readRunLengthColumn(buf, offset, countTag(d.valueType, valueBoolTag))
	if err != nil {
		return nil, nil, err
	}
	d.valueRefClient, offset, err = readRunLengthColumn(buf, offset, countTag(d.valueType, valueObjectTag))
	if err != nil {
		return nil, nil, err
	}
	d.valueRefSeq, offset, err = readMonotonicColumn(buf, offset, countTag(d.valueType, valueObjectTag))
	if err != nil {
		return nil, nil, err
	}

	// Weave every column back into operations in a single forward
	// pass, advancing one cursor per densely-packed column as each
	// op's action type consumes from it.
	var refCursor, selKeyCursor, selIndexCursor, selCursor int
	var blockCursor, parentCursor int
	var insertCursor, leftRightCursor int
	var valueCursor, valStrCursor, valIntCursor, valDblCursor, valBoolCursor, valRefCursor int

	ops := make([]model.Operation, n)
	for i := 0; i < n; i++ {
		op := model.Operation{
			ID:        model.OperationID{ClientID: model.ClientID(idClient[i]), Sequence: model.SequenceIndex(idSequence[i])},
			Timestamp: model.Timestamp(timestamp[i]),
		}
		if hasParent[i] != 0 {
			parent := model.OperationID{ClientID: model.ClientID(parentClient[i]), Sequence: model.SequenceIndex(parentSeq[i])}
			op.Parent = &parent
		}

		var object model.ObjRef
		if refType[i] == objRefObjectTag {
			id := model.OperationID{ClientID: model.ClientID(d.refClient[refCursor]), Sequence: model.SequenceIndex(d.refSeq[refCursor])}
			object = model.ObjRefFromID(id)
			refCursor++
		} else {
			object = model.RootRef()
		}

		nextSelector := func() model.Selector {
			tag := d.selectorType[selCursor]
			selCursor++
			if tag == selectorIndexTag {
				idx := d.selectorIndices[selIndexCursor]
				selIndexCursor++
				return model.Index(int(idx))
			}
			key := d.selectorKeys[selKeyCursor]
			selKeyCursor++
			return model.Key(key)
		}
		nextBlockID := func() model.MapBlockID {
			id := model.MapBlockID{ClientID: model.ClientID(d.blockClient[blockCursor]), Sequence: model.SequenceIndex(d.blockSeq[blockCursor])}
			blockCursor++
			return id
		}
		nextSequenceBlockID := func() model.SequenceBlockID {
			id := model.SequenceBlockID{ClientID: model.ClientID(d.blockClient[blockCursor]), Sequence: model.SequenceIndex(d.blockSeq[blockCursor])}
			blockCursor++
			return id
		}
		nextParents := func() []model.MapBlockID {
			count := d.parentCount[parentCursor]
			parentCursor++
			if count == 0 {
				return nil
			}
			parents := make([]model.MapBlockID, count)
			for j := range parents {
				parents[j] = nextBlockID()
			}
			return parents
		}
		nextLeftRight := func() model.SequenceBlockID {
			id := model.SequenceBlockID{ClientID: model.ClientID(d.leftRightClient[leftRightCursor]), Sequence: model.SequenceIndex(d.leftRightSeq[leftRightCursor])}
			leftRightCursor++
			return id
		}
		nextValue := func() model.Value {
			tag := d.valueType[valueCursor]
			valueCursor++
			switch tag {
			case valueStringTag:
				s := d.valueStrings[valStrCursor]
				valStrCursor++
				return model.NewScalar(model.StringValue(s))
			case valueIntTag:
				v := unzigzag(d.valueInts[valIntCursor])
				valIntCursor++
				return model.NewScalar(model.IntValue(int32(v)))
			case valueDoubleTag:
				bits := d.valueDoubles[valDblCursor]
				valDblCursor++
				return model.NewScalar(model.DoubleValue(doubleFromBits(bits)))
			case valueBoolTag:
				b := d.valueBools[valBoolCursor]
				valBoolCursor++
				return model.NewScalar(model.BoolValue(b != 0))
			default:
				id := model.OperationID{ClientID: model.ClientID(d.valueRefClient[valRefCursor]), Sequence: model.SequenceIndex(d.valueRefSeq[valRefCursor])}
				valRefCursor++
				return model.NewObject(model.ObjRefFromID(id))
			}
		}

		kind := model.ActionKind(actionType[i])
		switch kind {
		case model.ActionCreateMap:
			op.Action = &model.CreateMapAction{Object: object, Selector: nextSelector(), ID: nextBlockID(), Parents: nextParents()}
		case model.ActionSetMapValue:
			selector := nextSelector()
			id := nextBlockID()
			parents := nextParents()
			op.Action = &model.SetMapValueAction{Object: object, Selector: selector, ID: id, Parents: parents, Value: nextValue()}
		case model.ActionDeleteMapValue:
			op.Action = &model.DeleteMapValueAction{Object: object, Selector: nextSelector(), Parents: nextParents()}
		case model.ActionCreateText:
			op.Action = &model.CreateTextAction{Object: object, Selector: nextSelector(), ID: nextBlockID(), Parents: nextParents()}
		case model.ActionInsertText:
			id := nextSequenceBlockID()
			var left *model.SequenceBlockID
			if d.hasLeft[insertCursor] != 0 {
				l := nextLeftRight()
				left = &l
			}
			content := d.textContent[insertCursor]
			insertCursor++
			op.Action = &model.InsertTextAction{Object: object, ID: id, Value: content, Left: left}
		case model.ActionDeleteText:
			left := nextLeftRight()
			right := nextLeftRight()
			op.Action = &model.DeleteTextAction{Object: object, Left: left, Right: right}
		default:
			return nil, nil, malformedf("unknown action tag %d", kind)
		}

		ops[i] = op
	}

	return ops, buf[offset:], nil
}

func countTag(values []uint64, tag uint64) int {
	n := 0
	for _, v := range values {
		if v == tag {
			n++
		}
	}
	return n
}

func sumUint64(values []uint64) uint64 {
	var total uint64
	for _, v := range values {
		total += v
	}
	return total
}

func countOpsWithBlock(actionType []uint64) int {
	n := 0
	for _, t := range actionType {
		switch model.ActionKind(t) {
		case model.ActionCreateMap, model.ActionSetMapValue, model.ActionCreateText, model.ActionInsertText:
			n++
		}
	}
	return n
}

func countOpsWithParents(actionType []uint64) int {
	n := 0
	for _, t := range actionType {
		switch model.ActionKind(t) {
		case model.ActionCreateMap, model.ActionSetMapValue, model.ActionDeleteMapValue, model.ActionCreateText:
			n++
		}
	}
	return n
}
