package registry

// functionNames maps the CAN network's function codes to display names.
// Codes are assigned by the vehicle manufacturer; this table covers the
// codes observed across coach model years. Entries containing %d are
// instance-numbered families — the instance substitutes into the name.
// Plain entries with duplicate instances get the instance appended instead.
var functionNames = map[uint16]string{
	// 0-39: chassis and house systems.
	0:  "Unused",
	1:  "Main Controller",
	2:  "House Battery Disconnect",
	3:  "Chassis Battery Disconnect",
	4:  "Battery Boost",
	5:  "Ignition",
	6:  "Park Brake",
	7:  "Generator Start",
	8:  "Generator Stop",
	9:  "Generator",
	10: "Inverter",
	11: "Converter",
	12: "Shore Power",
	13: "Transfer Switch",
	14: "Solar Charger",
	15: "Water Pump",
	16: "Water Heater",
	17: "Water Heater Electric",
	18: "Water Heater Gas",
	19: "Furnace",
	20: "LP Gas Detector",
	21: "LP Gas Valve",
	22: "Tank Heater",
	23: "Fresh Tank Heater",
	24: "Gray Tank Heater",
	25: "Black Tank Heater",
	26: "Macerator",
	27: "Gray Tank Dump Valve",
	28: "Black Tank Dump Valve",
	29: "Exterior Spotlight",
	30: "Security Light",
	31: "Docking Light",
	32: "Hitch Light",
	33: "Running Lights",
	34: "Clearance Lights",
	35: "Step Cover",
	36: "Entry Step",
	37: "Step Light",
	38: "Doorbell",
	39: "Slide Out Lockout",

	// 40-139: interior and exterior lighting.
	40:  "Ceiling Light",
	41:  "Living Room Ceiling Light",
	42:  "Living Room Accent Light",
	43:  "Living Room Lamp",
	44:  "Galley Ceiling Light",
	45:  "Galley Counter Light",
	46:  "Galley Accent Light",
	47:  "Galley Sink Light",
	48:  "Range Light",
	49:  "Dinette Light",
	50:  "Bar Light",
	51:  "Entry Light",
	52:  "Hall Light",
	53:  "Hall Ceiling Light",
	54:  "Bedroom Ceiling Light",
	55:  "Bedroom Accent Light",
	56:  "Bedroom Reading Light",
	57:  "Bedroom Vanity Light",
	58:  "Front Bedroom Light",
	59:  "Rear Bedroom Light",
	60:  "Bunk Light",
	61:  "Bunk Light Upper",
	62:  "Bunk Light Lower",
	63:  "Loft Light",
	64:  "Bath Light",
	65:  "Bath Ceiling Light",
	66:  "Bath Vanity Light",
	67:  "Bath Accent Light",
	68:  "Shower Light",
	69:  "Rear Bath Light",
	70:  "Front Bath Light",
	71:  "Half Bath Light",
	72:  "Wardrobe Light",
	73:  "Closet Light",
	74:  "Pantry Light",
	75:  "Slide Ceiling Light",
	76:  "Slide Accent Light",
	77:  "Ceiling Fan Light",
	78:  "Chandelier",
	79:  "Theater Light",
	80:  "TV Accent Light",
	81:  "Fireplace Accent Light",
	82:  "Toe Kick Light",
	83:  "Floor Light",
	84:  "Stair Light",
	85:  "Under Cabinet Light",
	86:  "Overhead Cabinet Light",
	87:  "Valance Light",
	88:  "Cove Light",
	89:  "Ceiling Accent Light",
	90:  "Awning Light",
	91:  "Patio Light",
	92:  "Porch Light",
	93:  "Exterior Light",
	94:  "Scare Light",
	95:  "Underbody Accent Light",
	96:  "Ground Effect Light",
	97:  "Compartment Light",
	98:  "Storage Bay Light",
	99:  "Basement Light",
	100: "Utility Bay Light",
	101: "Water Bay Light",
	102: "Generator Bay Light",
	103: "Engine Bay Light",
	104: "Ramp Light",
	105: "Ramp Patio Light",
	106: "Garage Light",
	107: "Garage Ceiling Light",
	108: "Exterior Galley Light",
	109: "Outside Kitchen Light",
	110: "Grill Light",
	111: "Cargo Light",
	112: "Hitch Utility Light",
	113: "Pin Box Light",
	114: "Front Cap Light",
	115: "Rear Cap Light",
	116: "Cab Light",
	117: "Cockpit Light",
	118: "Driver Light",
	119: "Passenger Light",
	120: "Map Light",
	121: "Courtesy Light",
	122: "Night Light",
	123: "Accent Light",
	124: "Reading Light",
	125: "Desk Light",
	126: "Office Light",
	127: "Mid Bath Light",
	128: "Mid Bunk Light",
	129: "Den Light",
	130: "Salon Light",
	131: "Galley Pendant Light",
	132: "Island Light",
	133: "Mirror Light",
	134: "Medicine Cabinet Light",
	135: "Skylight Accent Light",
	136: "Ceiling Light Zone %d",
	137: "Accent Light Zone %d",
	138: "Exterior Light Zone %d",
	139: "Light Group %d",

	// 140-199: switched accessories.
	140: "Water Pump Switch",
	141: "Water Heater Switch",
	142: "Tank Heater Switch",
	143: "Furnace Switch",
	144: "Ceiling Fan",
	145: "Vent Fan",
	146: "Bath Vent Fan",
	147: "Galley Vent Fan",
	148: "Bedroom Vent Fan",
	149: "Range Hood Fan",
	150: "Exhaust Fan",
	151: "Intake Fan",
	152: "Fireplace",
	153: "Electric Fireplace",
	154: "Television",
	155: "TV Lift",
	156: "TV Antenna Booster",
	157: "Satellite Dish",
	158: "Stereo",
	159: "Exterior Stereo",
	160: "Subwoofer",
	161: "Refrigerator",
	162: "Ice Maker",
	163: "Microwave",
	164: "Dishwasher",
	165: "Washer Dryer",
	166: "Outside Receptacle",
	167: "Inverter Receptacle",
	168: "USB Charger",
	169: "Wireless Charger",
	170: "Slide Room Switch",
	171: "Awning Switch",
	172: "Jack Switch",
	173: "Air Compressor",
	174: "Air Horn",
	175: "Back Up Alarm",
	176: "Heated Mirror",
	177: "Windshield Fan",
	178: "Defrost Fan",
	179: "Wiper",
	180: "Heated Seat Driver",
	181: "Heated Seat Passenger",
	182: "Floor Heat",
	183: "Floor Heat Living Room",
	184: "Floor Heat Bath",
	185: "Floor Heat Bedroom",
	186: "Engine Block Heater",
	187: "Fuel Station Pump",
	188: "Exterior Shower",
	189: "Window Shade Lockout",
	190: "Keyless Entry",
	191: "Porch Receptacle",
	192: "Bug Zapper",
	193: "Holding Tank Flush",
	194: "Winterize Valve",
	195: "Bypass Valve",
	196: "Aux Pump",
	197: "Transfer Pump",
	198: "Accessory Switch %d",
	199: "Relay %d",

	// 200-259: movement devices (H-bridge).
	200: "Main Slide",
	201: "Living Room Slide",
	202: "Galley Slide",
	203: "Dinette Slide",
	204: "Sofa Slide",
	205: "Bedroom Slide",
	206: "Front Bedroom Slide",
	207: "Rear Bedroom Slide",
	208: "Wardrobe Slide",
	209: "Bunk Slide",
	210: "Garage Slide",
	211: "Door Side Slide",
	212: "Off Door Side Slide",
	213: "Front Slide",
	214: "Mid Slide",
	215: "Rear Slide",
	216: "Patio Awning",
	217: "Main Awning",
	218: "Front Awning",
	219: "Rear Awning",
	220: "Door Awning",
	221: "Window Awning",
	222: "Slide Topper",
	223: "Front Jacks",
	224: "Rear Jacks",
	225: "Left Front Jack",
	226: "Right Front Jack",
	227: "Left Rear Jack",
	228: "Right Rear Jack",
	229: "Tongue Jack",
	230: "Stabilizer Jacks",
	231: "Front Stabilizer",
	232: "Rear Stabilizer",
	233: "Landing Gear",
	234: "Bed Lift",
	235: "Loft Bed",
	236: "Sofa Bed",
	237: "Ramp Door",
	238: "Patio Deck",
	239: "Patio Rail",
	240: "Entry Door",
	241: "Compartment Door",
	242: "Window Shade",
	243: "Living Room Shade",
	244: "Galley Shade",
	245: "Bedroom Shade",
	246: "Bath Shade",
	247: "Windshield Shade",
	248: "Door Shade",
	249: "Day Shade",
	250: "Night Shade",
	251: "Skylight Shade",
	252: "Vent Cover",
	253: "Roof Vent",
	254: "Solar Panel Tilt",
	255: "Antenna Lift",
	256: "Slide Room %d",
	257: "Awning %d",
	258: "Shade %d",
	259: "Jack %d",

	// 260-299: tanks and fluids.
	260: "Fresh Water Tank",
	261: "Gray Water Tank",
	262: "Black Water Tank",
	263: "Galley Gray Tank",
	264: "Bath Gray Tank",
	265: "Rear Gray Tank",
	266: "Rear Black Tank",
	267: "LP Tank",
	268: "Front LP Tank",
	269: "Rear LP Tank",
	270: "Fuel Tank",
	271: "Generator Fuel Tank",
	272: "DEF Tank",
	273: "Hydraulic Reservoir",
	274: "Water Filter",
	275: "City Water",
	276: "Tank Monitor",
	277: "Fresh Tank %d",
	278: "Gray Tank %d",
	279: "Black Tank %d",
	280: "Tank %d",

	// 300-339: instance-numbered families spanning floor plans.
	300: "Zone %d Light",
	301: "Zone %d Accent Light",
	302: "Zone %d Fan",
	303: "Zone %d Shade",
	304: "Zone %d Thermostat",
	305: "Bunk %d Light",
	306: "Bay %d Light",
	307: "Compartment %d",
	308: "Slide %d Topper",
	309: "Leveler %d",
	310: "Step %d",
	311: "Door %d",
	312: "Window %d Shade",
	313: "Receptacle %d",
	314: "Pump %d",
	315: "Fan %d",
	316: "Heater %d",
	317: "Camera %d",
	318: "Sensor %d",
	319: "Auxiliary %d",

	// 340-379: climate.
	340: "Thermostat",
	341: "Living Room Thermostat",
	342: "Bedroom Thermostat",
	343: "Garage Thermostat",
	344: "Front Air Conditioner",
	345: "Mid Air Conditioner",
	346: "Rear Air Conditioner",
	347: "Living Room Air Conditioner",
	348: "Bedroom Air Conditioner",
	349: "Garage Air Conditioner",
	350: "Heat Pump",
	351: "Front Furnace",
	352: "Rear Furnace",
	353: "Hydronic Heat",
	354: "Aqua Hot",
	355: "Floor Heat Zone %d",
	356: "HVAC Zone %d",

	// 380-445: sensors, meters, and safety.
	380: "Interior Temperature",
	381: "Exterior Temperature",
	382: "Refrigerator Temperature",
	383: "Freezer Temperature",
	384: "Basement Temperature",
	385: "Water Bay Temperature",
	386: "Garage Temperature",
	387: "Bedroom Temperature",
	388: "House Battery",
	389: "Chassis Battery",
	390: "Generator Battery",
	391: "Battery Monitor",
	392: "Generator Hour Meter",
	393: "Inverter Hour Meter",
	394: "Air Compressor Hour Meter",
	395: "Engine Hour Meter",
	396: "Smoke Detector",
	397: "CO Detector",
	398: "LP Detector",
	399: "Water Leak Detector",
	400: "Door Lock",
	401: "Entry Door Lock",
	402: "Garage Door Lock",
	403: "Compartment Lock",
	404: "Tire Pressure Front Left",
	405: "Tire Pressure Front Right",
	406: "Tire Pressure Rear Left",
	407: "Tire Pressure Rear Right",
	408: "Tire Pressure %d",
	409: "Solar Charge Controller",
	410: "Surge Protector",
	411: "Auto Gen Start",
	412: "Weather Station",
	413: "Wind Sensor",
	414: "Rain Sensor",
	415: "Awning Wind Sensor",
	416: "Chassis Voltage",
	417: "House Voltage",
	418: "Inverter Load",
	419: "Shore Power Meter",
	420: "Generator Load",
	421: "Water Pressure",
	422: "Water Flow Meter",
	423: "Propane Level",
	424: "Battery Temperature",
	425: "Hydraulic Pressure",
	426: "Air Pressure Front",
	427: "Air Pressure Rear",
	428: "Slide Position",
	429: "Awning Position",
	430: "Level Sensor Front",
	431: "Level Sensor Rear",
	432: "Level Sensor Side",
	433: "Real Time Clock",
	434: "Gateway",
	435: "Network Bridge",
	436: "Diagnostic Port",
	437: "Spare Sensor %d",
	438: "Spare Switch %d",
	439: "Spare Light %d",
	440: "Spare Relay %d",
	441: "Spare Cover %d",
	442: "Spare Tank %d",
	443: "Spare Meter %d",
	444: "Spare Zone %d",
	445: "Spare Device %d",
}
