package service

// Clinical lexicons used by the field matchers. These cover the
// neurovascular/neurosurgical vocabulary of the source notes; unknown
// terms simply never match.

// drugLexicon lists medication names recognized in free text. The
// normalizer already expands common brand shorthand (Keppra, Tylenol).
var drugLexicon = []string{
	"nimodipine",
	"aspirin",
	"levetiracetam",
	"phenytoin",
	"dexamethasone",
	"acetaminophen",
	"oxycodone",
	"metoprolol",
	"labetalol",
	"lisinopril",
	"amlodipine",
	"atorvastatin",
	"heparin",
	"enoxaparin",
	"warfarin",
	"famotidine",
	"pantoprazole",
	"ondansetron",
	"docusate",
	"senna",
	"insulin",
	"vancomycin",
	"cefazolin",
	"ceftriaxone",
	"piperacillin",
	"midodrine",
	"fludrocortisone",
	"hydralazine",
	"nicardipine",
	"mannitol",
	"hypertonic saline",
}

// drugAliases canonicalizes alternate names so similarity comparisons and
// cross-references treat them as the same drug.
var drugAliases = map[string]string{
	"asa":       "aspirin",
	"keppra":    "levetiracetam",
	"tylenol":   "acetaminophen",
	"dilantin":  "phenytoin",
	"lovenox":   "enoxaparin",
	"coumadin":  "warfarin",
	"protonix":  "pantoprazole",
	"zofran":    "ondansetron",
	"decadron":  "dexamethasone",
	"lopressor": "metoprolol",
}

// complicationLexicon lists complication terms scanned for in free text.
var complicationLexicon = []string{
	"vasospasm",
	"delayed cerebral ischemia",
	"hydrocephalus",
	"rebleeding",
	"rebleed",
	"re-rupture",
	"seizure",
	"seizures",
	"fever",
	"hyponatremia",
	"cerebral salt wasting",
	"meningitis",
	"ventriculitis",
	"pneumonia",
	"urinary tract infection",
	"deep vein thrombosis",
	"pulmonary embolism",
	"stroke",
	"infarct",
	"headache",
	"nausea",
	"vomiting",
	"wound infection",
	"cerebral edema",
	"respiratory failure",
}

// procedureLexicon lists procedure terms scanned for in free text.
var procedureLexicon = []string{
	"craniotomy",
	"craniectomy",
	"aneurysm clipping",
	"clipping",
	"coiling",
	"coil embolization",
	"embolization",
	"external ventricular drain",
	"ventriculostomy",
	"ventriculoperitoneal shunt",
	"lumbar drain",
	"cerebral angiogram",
	"angiogram",
	"angioplasty",
	"thrombectomy",
	"tracheostomy",
	"gastrostomy",
	"intubation",
	"central line placement",
}

// dispositionLexicon lists recognized discharge destinations.
var dispositionLexicon = []string{
	"home",
	"home with services",
	"acute rehabilitation",
	"acute rehab",
	"inpatient rehabilitation",
	"skilled nursing facility",
	"long-term acute care",
	"hospice",
	"another hospital",
}
